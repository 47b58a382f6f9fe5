// Command server 机器人驱动网关：TCP/串口接入、下行指令队列与控制 API。
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/logging"
)

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "", "config file (defaults to $DRIVELINK_CONFIG or configs/example.yaml)")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	err = bootstrap.Run(cfg, logger)
	if err != nil {
		logger.Error("server exited", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
