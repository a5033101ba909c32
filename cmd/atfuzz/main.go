package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/atfuzz/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
	"github.com/taoyao-code/atfuzz/internal/logging"
	"github.com/taoyao-code/atfuzz/internal/transport"
)

func main() {
	// 1) 命令行参数
	flags := pflag.NewFlagSet("atfuzz", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	flags.StringP("device", "d", "", "serial device to fuzz, e.g. /dev/ttyUSB0")
	flags.BoolP("replay", "r", false, "replay the crash log instead of fuzzing")
	_ = flags.Parse(os.Args[1:])

	// 2) 加载配置
	cfg, err := cfgpkg.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, flags.FlagUsages())
		os.Exit(1)
	}

	// 3) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 4) 信号即外部中断
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx, cfg, log); err != nil {
		if errors.Is(err, transport.ErrDeviceNotFound) {
			log.Fatal("device not found", zap.String("device", cfg.Device.Name), zap.Error(err))
		}
		log.Fatal("atfuzz failed", zap.Error(err))
	}
}
