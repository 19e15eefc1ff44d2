// Package observability provides the CLI logger.
//
// All command output that is not report data (tables, JSONL records)
// goes through CLILogger on stderr, keeping stdout clean for piping.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for command diagnostics.
//
// It starts as a no-op so packages can log unconditionally; commands
// call InitCLILogger during startup to make it real.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for terminal use.
//
// level is a zap level name ("debug", "info", "warn", "error");
// unrecognized values fall back to info. When jsonFormat is true the
// logger emits structured JSON lines instead of console output. Both
// formats write to stderr.
func InitCLILogger(level string, jsonFormat bool) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)
	CLILogger = zap.New(core)
}

// Sync flushes any buffered log entries. Called on process exit.
func Sync() {
	_ = CLILogger.Sync()
}
