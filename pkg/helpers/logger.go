package helpers

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Development gets debug-level text
// output; every other env gets info-level JSON. Each entry carries app and
// env fields. A non-empty logFile is written as well, rotated by size.
func NewLogger(appName, env, logFile string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(logOutput(logFile))
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.AddHook(staticFields{"app": appName, "env": env})
	logger.Debug("logger initialized")
	return logger
}

func logOutput(logFile string) io.Writer {
	if logFile == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
}

// staticFields stamps the same fields on every entry unless already set.
type staticFields logrus.Fields

func (staticFields) Levels() []logrus.Level { return logrus.AllLevels }

func (f staticFields) Fire(e *logrus.Entry) error {
	for k, v := range f {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// NewNopLogger discards everything; tests use it.
func NewNopLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
