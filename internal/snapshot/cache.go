package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// #region cache
// Cache holds the current snapshot file bytes and follows the file through
// fsnotify events on its directory. OnChange, when set, is called after
// every reload with whether the file is present.
type Cache struct {
	path     string
	logger   *zap.Logger
	onChange func(present bool)

	mu      sync.RWMutex
	data    []byte
	running bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewCache loads path once and prepares a watcher on its directory.
func NewCache(path string, logger *zap.Logger, onChange func(present bool)) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("snapshot watcher: %w", err)
	}
	c := &Cache{
		path:     filepath.Clean(path),
		logger:   logger,
		onChange: onChange,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	c.reload()
	return c, nil
}

// Bytes returns the cached file and whether it exists.
func (c *Cache) Bytes() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return nil, false
	}
	return append([]byte(nil), c.data...), true
}

// Start begins watching. It does not block. On failure the watcher is
// released and Stop becomes a no-op.
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.closeWatcher()
		return fmt.Errorf("snapshot dir: %w", err)
	}
	if err := c.watcher.Add(dir); err != nil {
		c.closeWatcher()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	c.running = true
	go c.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the watcher.
func (c *Cache) Stop() {
	c.mu.Lock()
	running := c.running
	c.running = false
	c.mu.Unlock()

	if running {
		close(c.stopCh)
		<-c.doneCh
	}
	c.closeWatcher()
}

func (c *Cache) closeWatcher() {
	if err := c.watcher.Close(); err != nil {
		c.logger.Warn("close snapshot watcher", zap.Error(err))
	}
}

func (c *Cache) run(ctx context.Context) {
	defer close(c.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				c.reload()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("snapshot watcher error", zap.Error(err))
		}
	}
}

func (c *Cache) reload() {
	data, err := os.ReadFile(c.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("read snapshot", zap.String("path", c.path), zap.Error(err))
		return
	}
	if err != nil {
		data = nil
	}

	c.mu.Lock()
	c.data = data
	c.mu.Unlock()

	c.logger.Debug("snapshot reloaded", zap.String("path", c.path), zap.Bool("present", data != nil))
	if c.onChange != nil {
		c.onChange(data != nil)
	}
}

// #endregion cache
