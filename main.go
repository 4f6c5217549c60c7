package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naturecache/naturecache/internal/cache"
	"github.com/naturecache/naturecache/internal/config"
	"github.com/naturecache/naturecache/internal/logging"
	"github.com/naturecache/naturecache/internal/prewarm"
	"github.com/naturecache/naturecache/internal/proxy"
	"github.com/naturecache/naturecache/internal/server"
	"github.com/naturecache/naturecache/internal/server/routes"
	"github.com/naturecache/naturecache/internal/species"
	"github.com/naturecache/naturecache/internal/store"
	"github.com/naturecache/naturecache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["routes"] = len(cfg.Routes)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	registry, err := server.NewRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建路由注册表失败: %v\n", err)
		return 1
	}

	// 启动遵循“配置 → 注册表 → 持久层 → 响应缓存 → Fiber server”顺序，
	// 保证所有请求共享统一的路由与缓存实例。
	durable, err := store.Open(cfg.Global.DatabasePath)
	if err != nil {
		fmt.Fprintf(stdErr, "打开持久存储失败: %v\n", err)
		return 1
	}
	defer durable.Close()

	dataCache := cache.NewTiered(cache.NewMemory(), durable, cfg.Global.CacheTTL.DurationValue(), logger)

	respStore, err := proxy.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	lifecycle, err := proxy.NewLifecycle(context.Background(), respStore, version.Version, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存命名空间失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	proxyHandler := proxy.NewHandler(httpClient, logger, respStore, lifecycle)

	apiClient := species.NewClient(httpClient, cfg.Global.APIBaseURL,
		species.StaticLocale(cfg.Global.Locale), cfg.Global.RequestSpacing.DurationValue())
	warmer := prewarm.New(dataCache, durable, apiClient, logger, 0)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweeper(sweepCtx, dataCache, cfg.Global.SweepInterval.DurationValue(), logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["routes"] = len(cfg.Routes)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, registry, proxyHandler, lifecycle, respStore, dataCache, warmer, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("naturecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 NATURECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("NATURECACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// runSweeper 周期性清扫持久层过期条目，间隔为 0 时关闭清扫。
func runSweeper(ctx context.Context, dataCache *cache.Tiered, interval time.Duration, logger *logrus.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := dataCache.SweepExpired(ctx)
			fields := logrus.Fields{"action": "sweep", "removed": removed}
			if err != nil {
				logger.WithFields(fields).WithError(err).Warn("sweep_failed")
				continue
			}
			logger.WithFields(fields).Debug("sweep_complete")
		}
	}
}

func startHTTPServer(
	cfg *config.Config,
	registry *server.Registry,
	proxyHandler server.ProxyHandler,
	lifecycle *proxy.Lifecycle,
	respStore proxy.Store,
	dataCache *cache.Tiered,
	warmer *prewarm.Warmer,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Proxy:      proxyHandler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterControlRoutes(app, routes.ControlOptions{
		Registry:  registry,
		Lifecycle: lifecycle,
		Responses: respStore,
		Data:      dataCache,
		Warm:      warmer,
		Logger:    logger,
		Version:   version.Version,
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
