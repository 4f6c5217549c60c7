// Package cache 组合进程内内存缓存与持久存储，向数据层提供单一的
// get/set/expire 契约。内存层保证同一 tick 内写后可读；持久层写入失败
// 只削弱重启存活能力，不影响调用方。过期条目在读取路径上惰性清除，
// 批量清扫由持久层的时间索引完成。
package cache
