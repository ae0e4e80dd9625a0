package epp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"limsepp/internal/blob"
)

// logSeparator divides a prepended previous run log from the current one.
var logSeparator = strings.Repeat("=", 80) + "\n"

// RunLog is the per-run logger. Records go to the run log file (when
// configured), to the shared main log (when configured), and are mirrored to
// stderr so the LIMS GUI can show the last line to the operator.
type RunLog struct {
	Logger *zap.Logger
	files  []*os.File
}

// NewRunLog opens the run log. path is the per-run log file, mainLog the
// server-wide shared log; either may be empty. A missing main log is worth a
// warning, not an error.
func NewRunLog(path, mainLog string, level zapcore.Level) (*RunLog, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	rl := &RunLog{}
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}
	for _, p := range []string{path, mainLog} {
		if p == "" {
			continue
		}
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			rl.closeFiles()
			return nil, fmt.Errorf("open log %s: %w", p, err)
		}
		rl.files = append(rl.files, f)
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(f), level))
	}
	rl.Logger = zap.New(zapcore.NewTee(cores...))
	if mainLog == "" {
		rl.Logger.Warn("no main log file configured")
	}
	return rl, nil
}

// LogInvocation records which script ran and with what arguments, so
// repeated runs of the same step can be told apart in the log.
func (l *RunLog) LogInvocation(args []string) {
	if len(args) == 0 {
		return
	}
	l.Logger.Info("executing", zap.String("command", args[0]), zap.Strings("parameters", args[1:]))
}

// Close flushes and releases the log files.
func (l *RunLog) Close() error {
	_ = l.Logger.Sync()
	return l.closeFiles()
}

func (l *RunLog) closeFiles() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// PrependPrevious seeds the run log file at path with the previous run's log
// fetched from the file store, followed by a separator line. Call before
// NewRunLog so new records append after the old content. A missing previous
// log is not an error; the LIMS simply has no log artifact yet.
func PrependPrevious(ctx context.Context, store blob.Store, key, path string) error {
	if key == "" || path == "" {
		return nil
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no previous log found for id: %s\n", key)
		return nil
	}
	defer func() { _ = rc.Close() }()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("prepend log: %w", err)
	}
	if _, err := f.WriteString(logSeparator); err != nil {
		return fmt.Errorf("prepend log: %w", err)
	}
	return nil
}
