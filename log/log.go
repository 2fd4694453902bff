package log

import (
	"sync/atomic"

	"github.com/hatlonely/sqltable/log/logger"
)

var defaultLogger atomic.Pointer[logger.Logger]

func init() {
	// 默认向终端输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	SetDefault(slog)
}

func Default() logger.Logger {
	return *defaultLogger.Load()
}

// SetDefault 替换默认日志器，nil 会被忽略
func SetDefault(l logger.Logger) {
	if l == nil {
		return
	}
	defaultLogger.Store(&l)
}

// NewLoggerWithOptions 按配置创建日志器，options 为 nil 时返回默认日志器
func NewLoggerWithOptions(options *logger.SLogOptions) (logger.Logger, error) {
	if options == nil {
		return Default(), nil
	}
	return logger.NewSLogWithOptions(options)
}
