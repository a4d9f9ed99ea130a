package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger instance. It discards output until InitLogger runs.
var Log = zap.NewNop()

const prodStage = "prod"

// InitLogger configures Log for the given level and stage.
// The prod stage logs JSON; anything else logs human-readable console lines.
func InitLogger(levelName, stage string) error {
	level := zapcore.InfoLevel
	switch strings.ToLower(levelName) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var zapConfig zap.Config
	if stage == prodStage {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.InitialFields = map[string]interface{}{
			"service": "goTaxCalc",
			"stage":   stage,
		}
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	// Keep log lines off stdout, which carries calculator output
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.DisableStacktrace = level > zapcore.DebugLevel

	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	Log = logger
	return nil
}
