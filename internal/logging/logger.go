// Package logging 基于 zap 的结构化日志，文件输出经 lumberjack 滚动。
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
)

// ParseLevel 未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	var lv zapcore.Level
	if err := lv.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		if strings.EqualFold(strings.TrimSpace(s), "warning") {
			return zapcore.WarnLevel
		}
		return zapcore.InfoLevel
	}
	return lv
}

func newEncoder(format string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.StacktraceKey = "stack"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	switch strings.ToLower(format) {
	case "", "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

func rolling(fc cfgpkg.LumberjackConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   fc.Filename,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}
}

// New 标准输出 + 可选滚动文件；非 dev 环境对高频重复日志采样。
// 返回的日志器带 service/env 字段。
func New(cfg cfgpkg.LoggingConfig, app cfgpkg.AppConfig) (*zap.Logger, error) {
	enc, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	out := zapcore.AddSync(os.Stdout)
	if cfg.File.Filename != "" {
		out = zapcore.NewMultiWriteSyncer(out, zapcore.AddSync(rolling(cfg.File)))
	}

	var core zapcore.Core = zapcore.NewCore(enc, out, zap.NewAtomicLevelAt(ParseLevel(cfg.Level)))
	if app.Env != "" && app.Env != "dev" {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 10)
	}

	fields := []zap.Field{}
	if app.Name != "" {
		fields = append(fields, zap.String("service", app.Name))
	}
	if app.Env != "" {
		fields = append(fields, zap.String("env", app.Env))
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).With(fields...), nil
}
