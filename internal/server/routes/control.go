package routes

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/naturecache/naturecache/internal/proxy"
	"github.com/naturecache/naturecache/internal/routeclass"
	"github.com/naturecache/naturecache/internal/server"
)

// DataCache 抽象数据层缓存的清空能力，供 clear-caches 指令一并清理。
type DataCache interface {
	Clear(ctx context.Context)
}

// Warmer 抽象位置级预热能力，由 prewarm.Warmer 实现。
type Warmer interface {
	WarmLocation(ctx context.Context, lat, lng, radiusKm float64) error
}

// ControlOptions 聚合控制端接口需要的全部依赖。
type ControlOptions struct {
	Registry  *server.Registry
	Lifecycle *proxy.Lifecycle
	Responses proxy.Store
	Data      DataCache
	Warm      Warmer
	Logger    *logrus.Logger
	Version   string
}

// RegisterControlRoutes 暴露 /-/control 系列接口：版本与命名空间查询、
// 缓存清空、版本激活以及位置变更通知。
func RegisterControlRoutes(app *fiber.App, opts ControlOptions) {
	if app == nil || opts.Registry == nil || opts.Lifecycle == nil {
		return
	}

	app.Get("/-/classes", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"classes": encodeClasses(routeclass.List()),
			"routes":  encodeRouteBindings(opts.Registry.List()),
		}
		return c.JSON(payload)
	})

	app.Get("/-/control/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version":            opts.Version,
			"active_namespace":   opts.Lifecycle.ActiveVersion(),
			"pending_namespaces": opts.Lifecycle.Pending(),
		})
	})

	app.Post("/-/control/clear-caches", func(c fiber.Ctx) error {
		ctx := requestContext(c)
		if opts.Responses != nil {
			if err := opts.Responses.Clear(ctx); err != nil {
				logControl(opts.Logger, "clear_caches", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "clear_failed"})
			}
		}
		if opts.Data != nil {
			opts.Data.Clear(ctx)
		}
		logControl(opts.Logger, "clear_caches", nil)
		return c.JSON(fiber.Map{"cleared": true})
	})

	app.Post("/-/control/activate", func(c fiber.Ctx) error {
		purged, err := opts.Lifecycle.Activate(requestContext(c))
		if err != nil {
			logControl(opts.Logger, "activate", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "activate_failed"})
		}
		logControl(opts.Logger, "activate", nil)
		return c.JSON(fiber.Map{"purged_namespaces": purged})
	})

	app.Post("/-/control/prewarm", func(c fiber.Ctx) error {
		if opts.Warm == nil {
			return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "prewarm_unavailable"})
		}
		var body struct {
			Lat      float64 `json:"lat"`
			Lng      float64 `json:"lng"`
			RadiusKm float64 `json:"radius_km"`
		}
		if err := c.Bind().Body(&body); err != nil || body.RadiusKm <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_prewarm"})
		}
		// 预热是限速的批量抓取，后台执行，不能绑定请求生命周期
		go func() {
			if err := opts.Warm.WarmLocation(context.Background(), body.Lat, body.Lng, body.RadiusKm); err != nil {
				logControl(opts.Logger, "prewarm", err)
			}
		}()
		logControl(opts.Logger, "prewarm", nil)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"prewarm": "started"})
	})

	app.Post("/-/control/location", func(c fiber.Ctx) error {
		var body struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		}
		if err := c.Bind().Body(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_location"})
		}
		// 位置变更仅作记录，缓存键里左右方都带坐标，无需主动失效
		if opts.Logger != nil {
			opts.Logger.WithFields(logrus.Fields{
				"action": "control",
				"op":     "location",
				"lat":    body.Lat,
				"lng":    body.Lng,
			}).Info("location_changed")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type classPayload struct {
	Key                string `json:"key"`
	Description        string `json:"description"`
	PolicyMode         string `json:"policy_mode"`
	TTLSeconds         int64  `json:"ttl_seconds"`
	AllowStaleFallback bool   `json:"allow_stale_fallback"`
	FallbackPath       string `json:"fallback_path,omitempty"`
}

type routeBindingPayload struct {
	Name     string   `json:"name"`
	Class    string   `json:"class"`
	Patterns []string `json:"patterns"`
	Upstream string   `json:"upstream"`
	Port     int      `json:"port"`
}

func encodeClasses(classes []routeclass.ClassMetadata) []classPayload {
	if len(classes) == 0 {
		return nil
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Key < classes[j].Key
	})
	result := make([]classPayload, 0, len(classes))
	for _, meta := range classes {
		result = append(result, classPayload{
			Key:                meta.Key,
			Description:        meta.Description,
			PolicyMode:         string(meta.Policy.Mode),
			TTLSeconds:         int64(meta.Policy.TTLHint / time.Second),
			AllowStaleFallback: meta.Policy.AllowStaleFallback,
			FallbackPath:       meta.Policy.FallbackPath,
		})
	}
	return result
}

func encodeRouteBindings(routes []server.Route) []routeBindingPayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]routeBindingPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, routeBindingPayload{
			Name:     route.Config.Name,
			Class:    route.Class.Key,
			Patterns: append([]string(nil), route.Config.Patterns...),
			Upstream: route.Config.Upstream,
			Port:     route.ListenPort,
		})
	}
	return result
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func logControl(logger *logrus.Logger, op string, err error) {
	if logger == nil {
		return
	}
	fields := logrus.Fields{"action": "control", "op": op}
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("control_failed")
		return
	}
	logger.WithFields(fields).Info("control_applied")
}
