package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the active log file; rotated siblings get a timestamp suffix.
const LogFileName = "elamid.log"

// LogDirEnv overrides the log directory regardless of configuration.
const LogDirEnv = "ELAMID_LOG_DIR"

// Options configures Setup.
type Options struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
	// Console receives human-readable output; nil means os.Stderr.
	Console io.Writer
}

// Setup builds the process logger: colored text on the console and JSON
// lines in a size-rotated, compressed log file. The returned closer flushes
// and closes the file.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	logDir, err := resolveLogDir(opts.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handler := fanout{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    color.NoColor,
		}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	}

	return slog.New(handler), file, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// resolveLogDir picks the first writable directory out of the env override,
// the configured dir, the OS-standard dir and the working directory.
func resolveLogDir(configured string) (string, error) {
	var candidates []string
	if dir := os.Getenv(LogDirEnv); dir != "" {
		candidates = append(candidates, dir)
	}
	if configured != "" {
		candidates = append(candidates, configured)
	}
	if dir, err := osStandardLogDir(); err == nil {
		candidates = append(candidates, dir)
	}

	var errs []error
	for _, dir := range candidates {
		if err := ensureWritable(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		return dir, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Join(append(errs, err)...)
	}
	if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %v. Falling back to current directory for logging.\n", errs[0])
	}
	return cwd, nil
}

func osStandardLogDir() (string, error) {
	if runtime.GOOS == "linux" && os.Geteuid() == 0 {
		return "/var/log/elamid", nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "Elamid"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Elamid", "logs"), nil
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "Elamid", "logs"), nil
	default:
		return filepath.Join(homeDir, ".local", "share", "elamid", "logs"), nil
	}
}

func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("cannot create log directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("cannot write to log directory %s: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// fanout dispatches every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
