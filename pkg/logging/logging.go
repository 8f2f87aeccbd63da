// Package logging builds the process-wide slog backend and hands out
// per-subsystem loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Config controls backend construction.
type Config struct {
	// LogFile enables rotated file logging when non-empty.
	LogFile string
	// DebugLevel is either a single level ("debug") or a comma-separated
	// subsystem spec ("ROOM=trace,TIMR=debug,info").
	DebugLevel string
	// MaxLogFiles and MaxBufferLines bound the rotator; zero picks defaults.
	MaxLogFiles    int
	MaxBufferLines int
}

// Backend owns the slog backend and the created subsystem loggers.
type Backend struct {
	backend *slog.Backend
	rotator *rotator.Rotator

	mu      sync.Mutex
	loggers map[string]slog.Logger
	levels  map[string]slog.Level
	defLvl  slog.Level
}

// logWriter tees log output to stdout and, when configured, the rotator.
type logWriter struct {
	r *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.r != nil {
		return w.r.Write(p)
	}
	return len(p), nil
}

var _ io.Writer = (*logWriter)(nil)

// NewBackend creates a logging backend from cfg.
func NewBackend(cfg Config) (*Backend, error) {
	b := &Backend{
		loggers: make(map[string]slog.Logger),
		levels:  make(map[string]slog.Level),
		defLvl:  slog.LevelInfo,
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		maxFiles := cfg.MaxLogFiles
		if maxFiles == 0 {
			maxFiles = 5
		}
		r, err := rotator.New(cfg.LogFile, 32*1024, false, maxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create log rotator: %w", err)
		}
		b.rotator = r
	}

	b.backend = slog.NewBackend(&logWriter{r: b.rotator})

	if err := b.parseLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}
	return b, nil
}

// parseLevels accepts "level" or "SUBSYS=level,SUBSYS=level,level".
func (b *Backend) parseLevels(spec string) error {
	if spec == "" {
		return nil
	}
	for _, part := range strings.Split(spec, ",") {
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			lvl, ok := slog.LevelFromString(part[eq+1:])
			if !ok {
				return fmt.Errorf("invalid log level %q", part[eq+1:])
			}
			b.levels[strings.ToUpper(part[:eq])] = lvl
			continue
		}
		lvl, ok := slog.LevelFromString(part)
		if !ok {
			return fmt.Errorf("invalid log level %q", part)
		}
		b.defLvl = lvl
	}
	return nil
}

// Logger returns the logger for a subsystem tag, creating it on first use.
func (b *Backend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()

	if log, ok := b.loggers[subsystem]; ok {
		return log
	}
	log := b.backend.Logger(subsystem)
	if lvl, ok := b.levels[strings.ToUpper(subsystem)]; ok {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(b.defLvl)
	}
	b.loggers[subsystem] = log
	return log
}

// Close flushes and closes the rotator if one is configured.
func (b *Backend) Close() error {
	if b.rotator != nil {
		return b.rotator.Close()
	}
	return nil
}
