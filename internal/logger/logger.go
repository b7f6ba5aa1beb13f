// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger configuration
type Config struct {
	LogsDirectory string
	LogFileFormat string
	TimeZone      string
	Level         string
	Format        string // "text" or "json"
}

var (
	initialized int32 // 0 = not initialized, 1 = initialized
	base        = newBase()
	logFilePath string
	mu          sync.Mutex // protect against concurrent initialization
	trustProxy  int32      // 1 = honor X-Forwarded-For / X-Real-IP
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05 MST",
	})
	return l
}

// zoneFormatter renders entry timestamps in the configured time zone.
type zoneFormatter struct {
	logrus.Formatter
	loc *time.Location
}

func (f zoneFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.In(f.loc)
	return f.Formatter.Format(e)
}

// SetupLogger initializes the logger with file and console output.
func SetupLogger(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	if atomic.LoadInt32(&initialized) == 1 {
		return fmt.Errorf("logger already initialized")
	}

	if config.TimeZone == "" {
		config.TimeZone = "America/Mexico_City"
	}

	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return fmt.Errorf("failed to load time zone '%s': %w", config.TimeZone, err)
	}

	level := logrus.InfoLevel
	if config.Level != "" {
		parsed, err := logrus.ParseLevel(config.Level)
		if err != nil {
			return fmt.Errorf("invalid log level '%s': %w", config.Level, err)
		}
		level = parsed
	}

	var formatter logrus.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05 MST",
	}
	if strings.EqualFold(config.Format, "json") {
		formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	}

	var out io.Writer = os.Stdout
	if config.LogsDirectory != "" && config.LogFileFormat != "" {
		if err := os.MkdirAll(config.LogsDirectory, 0775); err != nil {
			return fmt.Errorf("failed to create logs directory '%s': %w", config.LogsDirectory, err)
		}

		logFileName := fmt.Sprintf(config.LogFileFormat, time.Now().In(loc).Format("2006-01-02"))

		// Respect whether LogFileFormat is an absolute path or not
		if filepath.IsAbs(logFileName) {
			logFilePath = logFileName
		} else {
			logFilePath = filepath.Join(config.LogsDirectory, logFileName)
		}

		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0664)
		if err != nil {
			return fmt.Errorf("failed to open log file '%s': %w", logFilePath, err)
		}
		out = io.MultiWriter(os.Stdout, logFile)
	}

	base.SetOutput(out)
	base.SetLevel(level)
	base.SetFormatter(zoneFormatter{Formatter: formatter, loc: loc})

	atomic.StoreInt32(&initialized, 1)
	if logFilePath != "" {
		LogInfo("Logger initialized, writing to %s", logFilePath)
	} else {
		LogInfo("Logger initialized, writing to stdout")
	}
	return nil
}

func GetLogFilePath() string {
	return logFilePath
}

func IsInitialized() bool {
	return atomic.LoadInt32(&initialized) == 1
}

// Logger exposes the underlying logrus logger, e.g. for libraries that accept
// a leveled logger.
func Logger() *logrus.Logger {
	return base
}

// SetOutput redirects log output. Tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithFields starts a structured entry annotated with the caller location.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields).WithField("caller", caller(2))
}

func LogMessage(level logrus.Level, message string, v ...interface{}) {
	if !base.IsLevelEnabled(level) {
		return
	}
	base.WithField("caller", caller(3)).Logf(level, message, v...)
}

func LogDebug(message string, v ...interface{}) { LogMessage(logrus.DebugLevel, message, v...) }
func LogInfo(message string, v ...interface{})  { LogMessage(logrus.InfoLevel, message, v...) }
func LogWarn(message string, v ...interface{})  { LogMessage(logrus.WarnLevel, message, v...) }
func LogError(message string, v ...interface{}) { LogMessage(logrus.ErrorLevel, message, v...) }
func LogFatal(message string, v ...interface{}) {
	LogMessage(logrus.FatalLevel, message, v...)
	os.Exit(1)
}

func LogHTTPRequest(r *http.Request) {
	clientIP := GetClientIP(r)
	LogInfo("HTTP %s %s from %s", r.Method, r.URL.Path, clientIP)
}

func LogHTTPError(r *http.Request, status int, err error) {
	clientIP := GetClientIP(r)
	LogError("HTTP %d error for %s %s from %s: %v", status, r.Method, r.URL.Path, clientIP, err)
}

// SetTrustProxy controls whether GetClientIP reads forwarding headers.
// Only enable it behind a proxy that overwrites them; otherwise any client
// can pick its own address.
func SetTrustProxy(trust bool) {
	var v int32
	if trust {
		v = 1
	}
	atomic.StoreInt32(&trustProxy, v)
}

// GetClientIP returns the peer address, or the forwarded client address when
// proxy headers are trusted.
func GetClientIP(r *http.Request) string {
	if atomic.LoadInt32(&trustProxy) == 1 {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
				return ip
			}
		}
		if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
			return real
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
