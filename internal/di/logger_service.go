package di

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/nodalsync/configsync/internal/config"
)

// LoggerService wraps the process-wide zerolog.Logger every other service
// logs through.
type LoggerService struct {
	Logger *zerolog.Logger
}

// NewLogger builds the structured logger from the loaded configuration's
// LoggingConfig.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc, err := do.Invoke[*ConfigService](i)
	if err != nil {
		return nil, err
	}
	logger, err := NewZerologLogger(cfgSvc.Get().Logging)
	if err != nil {
		return nil, err
	}
	return &LoggerService{Logger: &logger}, nil
}

// NewZerologLogger builds a zerolog.Logger from cfg. Adapted from the host
// project's proxy.NewLogger: same output-selection and pretty-console
// rules, trimmed to the formatting this module's logs actually use.
// Exported so standalone binaries that don't build the full container
// (cmd/notifyhubd) can still get the same logger shape.
func NewZerologLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	output, outputFile, err := selectOutput(cfg.Output)
	if err != nil {
		return zerolog.Logger{}, err
	}
	if shouldUsePretty(cfg, outputFile) {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).Level(cfg.ParseLevel()).With().Timestamp().Logger(), nil
}

func selectOutput(outputCfg string) (io.Writer, *os.File, error) {
	switch outputCfg {
	case "", "stdout":
		return os.Stdout, os.Stdout, nil
	case "stderr":
		return os.Stderr, os.Stderr, nil
	default:
		path := filepath.Clean(outputCfg)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("di: open log output %s: %w", path, err)
		}
		return f, f, nil
	}
}

func shouldUsePretty(cfg config.LoggingConfig, outputFile *os.File) bool {
	if cfg.Pretty {
		return true
	}
	switch cfg.Format {
	case "pretty", "console":
		return outputFile != nil && isatty.IsTerminal(outputFile.Fd())
	case "json":
		return false
	default:
		return outputFile != nil && isatty.IsTerminal(outputFile.Fd())
	}
}
