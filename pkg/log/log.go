package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugarLogger *zap.SugaredLogger
var zapLogger *zap.Logger

// Init 根据配置初始化全局 logger。
// format 为 console 时使用开发配置（彩色级别），否则使用生产 JSON 配置。
// outputpath 非空时在 stdout 之外追加文件输出。
func Init(level, format, outputpath string) {
	var err error
	var logger *zap.Logger
	var zapConfig zap.Config

	// 根据配置设置日志级别
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
		panic(fmt.Errorf("invalid log level: %w", err))
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	zapConfig.Level = logLevel
	zapConfig.Encoding = encoding
	zapConfig.OutputPaths = []string{"stdout"}
	if outputpath != "" {
		if err := os.MkdirAll(outputpath, 0755); err != nil {
			panic(fmt.Errorf("failed to create log directory: %w", err))
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, outputpath+"/app.log")
	}

	if logger, err = zapConfig.Build(); err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}

	zapLogger = logger
	sugarLogger = logger.Sugar()
}

// Info 记录一条 info 级别的日志
func Info(msg string) {
	sugarLogger.Info(msg)
}

// Infof 使用格式化字符串记录一条 info 级别的日志
func Infof(format string, args ...interface{}) {
	sugarLogger.Infof(format, args...)
}

// Infow 使用键值对记录一条 info 级别的日志
func Infow(msg string, keysAndValues ...interface{}) {
	sugarLogger.Infow(msg, keysAndValues...)
}

// Warnf 使用格式化字符串记录一条 warn 级别的日志
func Warnf(template string, args ...interface{}) {
	sugarLogger.Warnf(template, args...)
}

// Debugf 使用格式化字符串记录一条 debug 级别的日志
func Debugf(template string, args ...interface{}) {
	sugarLogger.Debugf(template, args...)
}

// Error 记录一条 error 级别的日志，并附带 error 信息
func Error(msg string, err error) {
	sugarLogger.Errorw(msg, "error", err)
}

func Errorf(template string, args ...interface{}) {
	sugarLogger.Errorf(template, args...)
}

// Fatal 记录一条 fatal 级别的日志，并附带 error 信息，然后退出程序
func Fatal(msg string, err error) {
	sugarLogger.Fatalw(msg, "error", err)
}

func Fatalf(template string, args ...interface{}) {
	sugarLogger.Fatalf(template, args...)
}

// Sync 将缓冲区中的任何日志刷新（写入）到底层 Writer。
// 在程序退出前调用它是个好习惯。
func Sync() {
	_ = sugarLogger.Sync()
	_ = zapLogger.Sync()
}

// GetLogger 返回原始 zap.Logger，供 zapgorm2 等需要结构化 logger 的组件使用。
func GetLogger() *zap.Logger {
	return zapLogger
}
