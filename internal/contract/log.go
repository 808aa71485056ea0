package contract

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
)

// Logger returns the process-wide structured logger. It writes text records
// to stderr so stdout stays reserved for results.
func Logger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
		logger.SetLevel(logrus.WarnLevel)
	})
	return logger
}

// ConfigureLogger applies the configured level to the process logger.
func ConfigureLogger(cfg *Config) *logrus.Logger {
	l := Logger()
	l.SetLevel(cfg.LogLevel)
	return l
}
