package gateway

import (
	"github.com/teilomillet/gollm/utils"
	"go.uber.org/zap"
)

// gollmLogger routes gollm's internal logging into zap. gollm's debug and
// info output includes request headers and bodies, API keys among them, so
// only its warnings (as zap debug) and errors (as zap warn) are forwarded.
type gollmLogger struct {
	logger *zap.Logger
	level  utils.LogLevel
}

var _ utils.Logger = (*gollmLogger)(nil)

func newGollmLogger(logger *zap.Logger) *gollmLogger {
	return &gollmLogger{
		logger: logger.Named("gollm").WithOptions(zap.AddCallerSkip(1)),
		level:  utils.LogLevelWarn,
	}
}

func (l *gollmLogger) Debug(string, ...interface{}) {}

func (l *gollmLogger) Info(string, ...interface{}) {}

func (l *gollmLogger) Warn(msg string, keysAndValues ...interface{}) {
	if l.level < utils.LogLevelWarn {
		return
	}
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

// Error carries the provider's HTTP status and response body, which gollm
// does not include in the error it returns.
func (l *gollmLogger) Error(msg string, keysAndValues ...interface{}) {
	if l.level < utils.LogLevelError {
		return
	}
	l.logger.Warn(msg, zap.Any("details", keysAndValues))
}

// SetLevel caps forwarding. Levels above warn are treated as warn.
func (l *gollmLogger) SetLevel(level utils.LogLevel) {
	if level > utils.LogLevelWarn {
		level = utils.LogLevelWarn
	}
	l.level = level
}
