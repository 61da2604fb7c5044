// Package follow tails a growing log file, like tail -f. The file's
// directory is watched with fsnotify so truncation and re-creation are
// picked up; a slow poll covers filesystems that drop events.
package follow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/model"
)

const (
	name                = "follow"
	defaultPollInterval = time.Second
)

func init() {
	connector.Register(name, func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for a file that keeps growing.
//
// Extra keys:
//
//	from_start     "true" to emit the existing contents first
//	poll_interval  fallback re-check interval (Go duration, default 1s)
type Connector struct{}

// Query returns the file's current contents.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLine, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("follow connector: missing path")
	}
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("follow connector: %w", err)
	}
	defer f.Close()
	lines, err := connector.ReadLines(ctx, f, name, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("follow connector: %w", err)
	}
	return lines, nil
}

func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLine, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("follow connector: missing path")
	}
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("follow connector: %w", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("follow connector: %w", err)
	}

	pollInterval := defaultPollInterval
	if raw := cfg.Extra["poll_interval"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			pollInterval = d
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("follow connector: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("follow connector: watch %s: %w", filepath.Dir(path), err)
	}

	t := &tailer{path: path}
	if cfg.Extra["from_start"] != "true" {
		t.offset = fi.Size()
	}

	ch := make(chan model.RawLine, 256)
	go func() {
		defer close(ch)
		defer watcher.Close()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		read := func() bool {
			if err := t.readNew(ctx, ch); err != nil {
				if ctx.Err() != nil {
					return false
				}
				connector.Fail(ctx, ch, name, fmt.Errorf("follow connector: %w", err))
				return false
			}
			return true
		}
		if !read() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					t.reset()
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && !read() {
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watch error", "connector", name, "error", err)
			case <-ticker.C:
				if !read() {
					return
				}
			}
		}
	}()
	return ch, nil
}

// tailer tracks the read position in one file. A line without its trailing
// newline is held back until the rest of it is written.
type tailer struct {
	path    string
	offset  int64
	partial string
}

func (t *tailer) reset() {
	t.offset = 0
	t.partial = ""
}

func (t *tailer) readNew(ctx context.Context, ch chan<- model.RawLine) error {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		// Rotated away; wait for it to come back.
		t.reset()
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() < t.offset {
		slog.Debug("file truncated", "connector", name, "path", t.path)
		t.reset()
	}
	if fi.Size() == t.offset {
		return nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		chunk, err := r.ReadString('\n')
		t.offset += int64(len(chunk))
		if err == io.EOF {
			t.partial += chunk
			return nil
		}
		if err != nil {
			return err
		}
		text := strings.TrimRight(t.partial+chunk, "\r\n")
		t.partial = ""
		if !connector.Send(ctx, ch, connector.Line(name, text)) {
			return ctx.Err()
		}
	}
}
