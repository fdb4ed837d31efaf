package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type FileState int

const (
	FileDone FileState = iota
	FileBad
)

type WatcherConfig struct {
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	PollInterval   time.Duration
	Extensions     []string
}

// Watcher reports files in SourceDir once they have stayed there for
// MonitoringTime, so half-copied uploads are not picked up.
type Watcher struct {
	cfg    WatcherConfig
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(cfg WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := CreateDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

// Watch polls the source folder until ctx is done and sends ready files to
// fileChan. A file is sent once and stays marked until Done is called.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("[WATCHER] start monitoring folder", "dir", w.cfg.SourceDir)
	defer w.logger.Info("[WATCHER] stopped")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.Scan() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Scan runs one polling pass and returns the files that became ready.
func (w *Watcher) Scan() []string {
	entries, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		w.logger.Error("[WATCHER] read source directory", "dir", w.cfg.SourceDir, "error", err)
		return nil
	}

	now := w.now()
	current := make(map[string]bool, len(entries))
	var ready []string

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !w.accepts(entry.Name()) {
			continue
		}
		path := filepath.Join(w.cfg.SourceDir, entry.Name())
		current[path] = true

		if w.processing[path] {
			continue
		}
		first, seen := w.firstSeen[path]
		if !seen {
			w.firstSeen[path] = now
			w.logger.Info("[WATCHER] new file detected", "path", path)
			continue
		}
		if now.Sub(first) >= w.cfg.MonitoringTime {
			w.processing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	return ready
}

// Done forgets a file after it has been handled.
func (w *Watcher) Done(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.firstSeen, path)
	delete(w.processing, path)
}

func (w *Watcher) accepts(name string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range w.cfg.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// MoveToArchive moves a handled file into a dated sub-folder of the archive
// or bad folder, adding a numeric suffix on name clashes.
func (w *Watcher) MoveToArchive(path string, state FileState) (string, error) {
	root := w.cfg.ArchiveDir
	if state == FileBad {
		root = w.cfg.BadDir
	}
	destDir := filepath.Join(root, w.now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(filepath.Base(dest), ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}

	if err := os.Rename(path, dest); err != nil {
		// cross-device move
		if err := copyFile(path, dest); err != nil {
			return "", err
		}
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("remove source file: %w", err)
		}
	}
	w.logger.Info("[WATCHER] file moved", "from", path, "to", dest)
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy file: %w", err)
	}
	return out.Close()
}

func CreateDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
