package voicefile

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"go-cycle/bridge"
	"go-cycle/logx"
)

const (
	debounceDelay      = 150 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Loader reads a voice file and applies it. A file that fails to parse or
// apply leaves the previous voices playing.
type Loader struct {
	path  string
	apply func([]bridge.Voice) error
	log   logx.Logger

	mu       sync.Mutex
	lastHash uint64
	loads    int
	lastErr  error
}

// NewLoader creates a loader applying voices through apply, usually a
// bridge's Replace.
func NewLoader(path string, apply func([]bridge.Voice) error, log logx.Logger) *Loader {
	return &Loader{path: path, apply: apply, log: log.Cat("voicefile")}
}

// Path is the watched file.
func (l *Loader) Path() string { return l.path }

// Status reports how many times voices were applied and the last error.
func (l *Loader) Status() (loads int, lastErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, l.lastErr
}

// Load reads, compiles and applies the file. Unchanged content is skipped.
func (l *Loader) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return l.fail(fmt.Errorf("voicefile: %w", err))
	}
	h := hashBytes(data)
	l.mu.Lock()
	unchanged := l.loads > 0 && h == l.lastHash
	l.mu.Unlock()
	if unchanged {
		l.log.Debug("voice file unchanged", logx.String("path", l.path))
		return nil
	}

	voices, err := Parse(data)
	if err != nil {
		return l.fail(err)
	}
	if err := l.apply(voices); err != nil {
		return l.fail(fmt.Errorf("voicefile: %w", err))
	}

	l.mu.Lock()
	l.lastHash = h
	l.loads++
	l.lastErr = nil
	l.mu.Unlock()
	l.log.Info("voices loaded", logx.String("path", l.path), logx.Int("voices", len(voices)))
	return nil
}

func (l *Loader) fail(err error) error {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	l.log.Warn("voice file rejected, keeping previous voices", logx.String("path", l.path), logx.Err(err))
	return err
}

// Watch reloads the file whenever it changes until ctx is done. Editors
// write files in bursts, so reloads are debounced. The watcher is recreated
// with backoff if it breaks.
func (l *Loader) Watch(ctx context.Context) error {
	dir := filepath.Dir(l.path)
	file := filepath.Base(l.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, func() {
			if ctx.Err() != nil {
				return
			}
			_ = l.Load()
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := restartBackoffBase
	wait := func() bool {
		d := backoff
		if backoff < restartBackoffMax {
			backoff = min(backoff*2, restartBackoffMax)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err != nil {
			l.log.Warn("voice watch init failed", logx.Err(err))
			if !wait() {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			l.log.Warn("voice watch add failed", logx.Err(err), logx.String("dir", dir))
			if !wait() {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		l.log.Debug("voice watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				l.log.Warn("voice watch error", logx.Err(err))
			}
		}

		_ = w.Close()
		l.log.Warn("voice watcher stopped; restarting", logx.Duration("backoff", backoff))
		if !wait() {
			return nil
		}
	}
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
