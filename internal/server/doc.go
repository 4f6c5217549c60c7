// Package server hosts the Fiber HTTP service, request middleware chain, and
// the route registry that maps request path patterns onto cache classes.
// The binary listens on loopback and every browser request flows through the
// classifier middleware before reaching the proxy handler, so keep exports
// narrow and accept explicit dependencies.
package server
