package daemonservice

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newMLSLogger builds the structured logger the MLS sync pipeline logs
// through. The pipeline's high-frequency, field-heavy events (cursor
// advances, envelope outcomes, rotation decisions) go through zap rather
// than the daemon's slog handler: zap's allocation-free field encoding is
// what the rest of the node's libp2p/waku stack already emits, so the MLS
// events land in the same shape for log shippers.
func newMLSLogger() *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv("AIM_MLS_LOG_LEVEL"))); raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Named("mls").Sugar()
}

// mlsLog returns the service's MLS pipeline logger, falling back to a no-op
// logger for Service values built as bare literals in tests.
func (s *Service) mlsLog() *zap.SugaredLogger {
	if s.mlsLogger == nil {
		return zap.NewNop().Sugar()
	}
	return s.mlsLogger
}
