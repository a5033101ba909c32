package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/atfuzz/internal/app"
	"github.com/taoyao-code/atfuzz/internal/atcmd"
	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
	"github.com/taoyao-code/atfuzz/internal/crashlog"
	"github.com/taoyao-code/atfuzz/internal/dictionary"
	"github.com/taoyao-code/atfuzz/internal/fuzzer"
	"github.com/taoyao-code/atfuzz/internal/health"
	"github.com/taoyao-code/atfuzz/internal/metrics"
	"github.com/taoyao-code/atfuzz/internal/replay"
	"github.com/taoyao-code/atfuzz/internal/storage/gormrepo"
	"github.com/taoyao-code/atfuzz/internal/transport"
)

// openDevice 打开目标串口
var openDevice = transport.Open

// Run 统一启动流程：打开设备后按配置进入模糊测试或重放模式。
// 返回的错误都是致命的；外部中断、找不到崩溃日志都视为正常结束。
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	runID := app.GenerateRunID()
	log = log.With(zap.String("run_id", runID), zap.String("device", cfg.Device.Name))
	mode := "fuzz"
	if cfg.Fuzz.Replay {
		mode = "replay"
	}
	log.Info("starting atfuzz", zap.String("mode", mode))

	// ========== 阶段1: 初始化基础组件 ==========
	reg, fm := app.NewMetrics()
	ready := health.NewReadiness()
	crashes := crashlog.New(cfg.Fuzz.CrashLog)
	defer crashes.Close()
	ready.SetCrashLogReady(crashes.Exists() || crashes.Writable() == nil)

	// ========== 阶段2: 打开设备（失败直接返回）==========
	ch, err := openDevice(cfg.Device, log)
	if err != nil {
		log.Error("device initialization failed", zap.Error(err))
		return err
	}
	defer ch.Close()
	ready.SetDeviceReady(true)

	// 节流只作用于模糊测试
	var limiter *transport.RateLimiter
	if !cfg.Fuzz.Replay {
		limiter = transport.NewRateLimiter(cfg.Fuzz.RateLimit, cfg.Fuzz.Burst)
	}

	// ========== 阶段3: 旁路HTTP服务（可选，非阻塞）==========
	healthAgg := app.NewHealthAggregator(crashes, ch, limiter)
	if cfg.HTTP.Enable {
		var metricsHandler = metrics.Handler(reg)
		if !cfg.Metrics.Enable {
			metricsHandler = nil
		}
		// 就绪：设备已打开，且没有 Unhealthy 的检查项
		readyFn := func() bool { return ready.Ready() && healthAgg.Ready(context.Background()) }
		httpSrv := app.NewHTTPServer(cfg.HTTP, cfg.Metrics.Path, metricsHandler, readyFn)
		httpSrv.Register(func(r *gin.Engine) {
			app.RegisterHealthRoutes(r, healthAgg)
		})
		go func() {
			if err := httpSrv.Start(); err != nil {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(sctx)
			log.Info("http server stopped")
		}()
		log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))
	}

	// ========== 阶段4: 崩溃镜像（可选，失败只告警）==========
	var mirrors []crashlog.Mirror

	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Warn("redis mirror unavailable", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		mirrors = append(mirrors, app.NewCrashPublisher(redisClient, cfg.Redis))
		app.AddRedisChecker(healthAgg, redisClient)
	}

	repo, err := app.ConnectDB(ctx, cfg.Database, log)
	if err != nil {
		log.Warn("database mirror unavailable", zap.Error(err))
	}
	if repo != nil {
		defer repo.Close()
		mirrors = append(mirrors, repo)
		app.AddDatabaseChecker(healthAgg, repo)
	}

	webhook, err := app.NewWebhookIfEnabled(cfg.Webhook, log)
	if err != nil {
		log.Warn("crash webhook unavailable", zap.Error(err))
	}
	if webhook != nil {
		mirrors = append(mirrors, webhook)
	}

	// ========== 阶段5: 运行 ==========
	if cfg.Fuzz.Replay {
		return runReplay(ctx, crashes, ch, repo, fm, log)
	}
	return runFuzz(ctx, cfg, runID, crashes, ch, limiter, mirrors, fm, log)
}

func runFuzz(
	ctx context.Context,
	cfg *cfgpkg.Config,
	runID string,
	crashes *crashlog.Log,
	ch transport.Channel,
	limiter *transport.RateLimiter,
	mirrors []crashlog.Mirror,
	fm *metrics.FuzzMetrics,
	log *zap.Logger,
) error {
	rng, seed := app.NewRand(cfg.Fuzz.Seed)
	log.Info("prng seeded", zap.Uint64("seed", seed))

	words, err := dictionary.Open(cfg.Fuzz.Dictionary, rng)
	if err != nil {
		log.Error("dictionary initialization failed", zap.String("path", cfg.Fuzz.Dictionary), zap.Error(err))
		return err
	}

	gen, err := atcmd.NewGenerator(rng, app.CountWords(words, fm.WordInclusions), atcmd.Options{
		Length:          cfg.Fuzz.PayloadLength,
		WordProbability: cfg.Fuzz.WordProbability,
	})
	if err != nil {
		return err
	}

	if limiter != nil {
		log.Info("send throttle enabled", zap.Int("rate", cfg.Fuzz.RateLimit), zap.Int("burst", cfg.Fuzz.Burst))
	}

	loop := fuzzer.New(gen, ch, crashes, log, fuzzer.Options{
		RunID:   runID,
		Device:  cfg.Device.Name,
		Limiter: limiter,
		Mirrors: mirrors,
		Metrics: fm,
	})

	report, err := loop.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("fuzz run interrupted", zap.Uint64("iterations", loop.Iterations()))
			return nil
		}
		return err
	}
	log.Info("crash report",
		zap.Uint64("iteration", report.Iteration),
		zap.Duration("elapsed", report.Elapsed),
		zap.String("crash_log", crashes.Path()))
	return nil
}

func runReplay(
	ctx context.Context,
	crashes *crashlog.Log,
	ch transport.Channel,
	repo *gormrepo.Repository,
	fm *metrics.FuzzMetrics,
	log *zap.Logger,
) error {
	engine := replay.New(crashes, ch, log, fm)
	if repo != nil {
		engine.SetConfirmers(repo)
	}

	_, err := engine.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, crashlog.ErrNoLogFound):
		// 已由引擎报告，不视为异常退出
		return nil
	case errors.Is(err, context.Canceled):
		log.Info("replay interrupted")
		return nil
	default:
		return err
	}
}
