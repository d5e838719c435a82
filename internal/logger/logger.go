package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global logger instance
	Log *zap.Logger
)

// Init initializes the logger at the given level. Output goes to stderr by
// default so the stdio transport keeps stdout for protocol frames; stdout is
// opt-in for HTTP deployments that collect container logs from stdout.
func Init(level zapcore.Level, stdout bool) error {
	output := "stderr"
	if stdout {
		output = "stdout"
	}

	// Create the logger configuration
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	// Disable stack traces
	config.EncoderConfig.StacktraceKey = ""

	// Create the logger
	logger, err := config.Build()
	if err != nil {
		return err
	}

	Log = logger
	return nil
}

// Level maps the -v/-vv flags and the MCP_VERBOSE/MCP_VERY_VERBOSE variables
// onto a zap level. The flag count wins over the environment.
func Level(verbosity int, verbose, veryVerbose bool) zapcore.Level {
	switch {
	case verbosity >= 2 || veryVerbose:
		return zapcore.DebugLevel
	case verbosity == 1 || verbose:
		return zapcore.InfoLevel
	}
	return zapcore.WarnLevel
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if Log == nil {
		// If logger is not initialized, create a default production logger
		var err error
		Log, err = zap.NewProduction(zap.WithCaller(false))
		if err != nil {
			panic(err)
		}
	}
	return Log
}

// Sync flushes any buffered log entries
func Sync() error {
	return Log.Sync()
}
