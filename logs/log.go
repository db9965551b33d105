package logs

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// 定义日志级别常量（数值越大，级别越高）
const (
	LevelTrace   = iota // 0（最低，最详细）
	LevelDebug          // 1
	LevelVerbose        // 2
	LevelInfo           // 3
	LevelWarning        // 4
	LevelError          // 5（最高，最严重）
)

var logLevel atomic.Int32

// MyAddress 作为每行日志的前缀，节点启动时设置为自己的公钥/地址
var MyAddress = "0x0000000"

// Logger 注入到各组件的日志接口
type Logger interface {
	Trace(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Verbose(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// levelLogger 每个级别一个 stdlib log.Logger
type levelLogger struct {
	prefix        string
	traceLogger   *log.Logger
	debugLogger   *log.Logger
	verboseLogger *log.Logger
	infoLogger    *log.Logger
	warnLogger    *log.Logger
	errorLogger   *log.Logger
}

var std *levelLogger

func init() {
	logLevel.Store(LevelInfo)
	std = newLevelLogger("", os.Stdout, os.Stderr)
}

func newLevelLogger(prefix string, out, errOut io.Writer) *levelLogger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	return &levelLogger{
		prefix:        prefix,
		traceLogger:   log.New(out, "[TRACE]   ", flags),
		debugLogger:   log.New(out, "[DEBUG]   ", flags),
		verboseLogger: log.New(out, "[VERBOSE] ", flags),
		infoLogger:    log.New(out, "[INFO]    ", flags),
		warnLogger:    log.New(out, "[WARN]    ", flags),
		errorLogger:   log.New(errOut, "[ERROR]   ", flags),
	}
}

// NewNodeLogger 创建带节点前缀的 Logger，addr 一般是公钥十六进制
func NewNodeLogger(addr string) Logger {
	return newLevelLogger(shortAddr(addr), os.Stdout, os.Stderr)
}

// NewWriterLogger 所有级别写到同一个 writer，测试里用
func NewWriterLogger(addr string, w io.Writer) Logger {
	return newLevelLogger(shortAddr(addr), w, w)
}

func shortAddr(addr string) string {
	if len(addr) > 7 {
		return addr[:7]
	}
	return addr
}

// SetLevel 设置全局日志级别
func SetLevel(level int) {
	if level < LevelTrace {
		level = LevelTrace
	}
	if level > LevelError {
		level = LevelError
	}
	logLevel.Store(int32(level))
}

// ParseLevel "info"/"warn"... -> LevelXXX
func ParseLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "verbose":
		return LevelVerbose, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func enabled(level int) bool {
	return int(logLevel.Load()) <= level
}

func (l *levelLogger) output(lg *log.Logger, level int, format string, v ...interface{}) {
	if !enabled(level) {
		return
	}
	prefix := l.prefix
	if prefix == "" {
		prefix = shortAddr(MyAddress)
	}
	// calldepth 3: output -> Info -> 调用方
	_ = lg.Output(3, prefix+" "+fmt.Sprintf(format, v...))
}

func (l *levelLogger) Trace(format string, v ...interface{}) {
	l.output(l.traceLogger, LevelTrace, format, v...)
}

func (l *levelLogger) Debug(format string, v ...interface{}) {
	l.output(l.debugLogger, LevelDebug, format, v...)
}

func (l *levelLogger) Verbose(format string, v ...interface{}) {
	l.output(l.verboseLogger, LevelVerbose, format, v...)
}

func (l *levelLogger) Info(format string, v ...interface{}) {
	l.output(l.infoLogger, LevelInfo, format, v...)
}

func (l *levelLogger) Warn(format string, v ...interface{}) {
	l.output(l.warnLogger, LevelWarning, format, v...)
}

func (l *levelLogger) Error(format string, v ...interface{}) {
	l.output(l.errorLogger, LevelError, format, v...)
}

// 包级别的日志方法
func Trace(format string, v ...interface{}) {
	std.output(std.traceLogger, LevelTrace, format, v...)
}

func Debug(format string, v ...interface{}) {
	std.output(std.debugLogger, LevelDebug, format, v...)
}

func Verbose(format string, v ...interface{}) {
	std.output(std.verboseLogger, LevelVerbose, format, v...)
}

func Info(format string, v ...interface{}) {
	std.output(std.infoLogger, LevelInfo, format, v...)
}

func Warn(format string, v ...interface{}) {
	std.output(std.warnLogger, LevelWarning, format, v...)
}

func Error(format string, v ...interface{}) {
	std.output(std.errorLogger, LevelError, format, v...)
}

// Default 返回包级别 Logger，未注入 Logger 的组件用它
func Default() Logger {
	return std
}
