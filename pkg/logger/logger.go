package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// discard 在 Init 之前兜底，测试中不需要初始化日志
var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func current() *logrus.Logger {
	if log != nil {
		return log
	}
	return discard
}

// Init 设置级别和格式，format 为 json 或 text
func Init(level, format string) error {
	l := logrus.New()
	l.SetLevel(parseLevel(level))

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	l.SetOutput(os.Stdout)
	log = l
	return nil
}

// SetLevel 配置热更新时调整日志级别
func SetLevel(level string) {
	if log != nil {
		log.SetLevel(parseLevel(level))
	}
}

// 无法识别的级别按 info 处理
func parseLevel(level string) logrus.Level {
	lv, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil || lv > logrus.DebugLevel {
		return logrus.InfoLevel
	}
	return lv
}

// WithFields 返回带结构化字段的 entry
func WithFields(fields logrus.Fields) *logrus.Entry {
	return current().WithFields(fields)
}

// WithError 返回附带错误的 entry
func WithError(err error) *logrus.Entry {
	return current().WithError(err)
}

func Debug(args ...interface{})                 { current().Debug(args...) }
func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Info(args ...interface{})                  { current().Info(args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warn(args ...interface{})                  { current().Warn(args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Error(args ...interface{})                 { current().Error(args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Fatal 未初始化时也会退出进程
func Fatal(args ...interface{}) {
	if log == nil {
		Init("info", "text")
	}
	log.Fatal(args...)
}

func Fatalf(format string, args ...interface{}) {
	if log == nil {
		Init("info", "text")
	}
	log.Fatalf(format, args...)
}
