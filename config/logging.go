package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogWriter is the writer used for application and database logs.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the default path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "manuscript-api.log")
}

// InitLogging opens the log file, points LogWriter and the standard logger at
// stdout plus the file, and builds the zap logger on top of the same writer.
// The returned file is nil when it could not be opened.
func InitLogging(cfg LogConfig) (*zap.Logger, *os.File, error) {
	var logFile *os.File
	path := cfg.File
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			log.Printf("Warning: Failed to create logs directory: %v", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("Warning: Failed to open log file: %v", err)
		} else {
			logFile = f
		}
	}

	LogWriter = os.Stdout
	if logFile != nil {
		LogWriter = io.MultiWriter(os.Stdout, logFile)
	}
	log.SetOutput(LogWriter)

	logger, err := NewLogger(cfg, zapcore.AddSync(LogWriter))
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, nil, err
	}
	return logger, logFile, nil
}

// NewLogger builds a zap logger writing to out in json or console format.
func NewLogger(cfg LogConfig, out zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, out, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}
