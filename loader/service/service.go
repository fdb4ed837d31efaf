package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ragchat/loader/internal"
)

// Uploader is the part of the Ingestor the folder service needs.
type Uploader interface {
	Upload(ctx context.Context, path string) (*Result, error)
}

type WatchConfig struct {
	SourceDir      string
	DocFolder      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	Workers        int
}

// Service uploads every PDF dropped into the source folder and then files
// the original under the archive or bad folder.
type Service struct {
	cfg      WatchConfig
	logger   *slog.Logger
	uploader Uploader
	watcher  *internal.Watcher
}

func New(cfg WatchConfig, uploader Uploader, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	watcher, err := internal.NewWatcher(internal.WatcherConfig{
		SourceDir:      cfg.SourceDir,
		ArchiveDir:     cfg.ArchiveDir,
		BadDir:         cfg.BadDir,
		MonitoringTime: cfg.MonitoringTime,
		Extensions:     []string{".pdf"},
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := internal.CreateDirectories(cfg.DocFolder); err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		uploader: uploader,
		watcher:  watcher,
	}, nil
}

func (s *Service) Stop() {
	s.logger.Info("Loader Service stopped")
}

// Run blocks until ctx is cancelled, then waits up to five seconds for the
// in-flight uploads.
func (s *Service) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	for range s.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				s.ProcessFile(ctx, path)
			}
		}()
	}

	<-ctx.Done()
	s.logger.Info("Received shutdown signal, shutting down gracefully...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All goroutines stopped successfully")
	case <-time.After(5 * time.Second):
		s.logger.Warn("Timeout waiting for goroutines to stop, forcing shutdown...")
	}
	s.Stop()
}

// ProcessFile copies the file into the document folder, uploads it and
// archives the original. A cancelled upload leaves the file in place so the
// next run picks it up again.
func (s *Service) ProcessFile(ctx context.Context, path string) {
	defer s.watcher.Done(path)

	s.logger.Info("[LOADER] processing file", "path", path)
	docPath := filepath.Join(s.cfg.DocFolder, filepath.Base(path))
	state := internal.FileDone

	if err := copyInto(path, docPath); err != nil {
		s.logger.Error("[LOADER] copy to document folder", "path", path, "error", err)
		state = internal.FileBad
	} else if res, err := s.uploader.Upload(ctx, docPath); err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("[LOADER] upload interrupted", "path", path, "error", err)
			return
		}
		s.logger.Error("[LOADER] upload failed", "path", path, "error", err)
		state = internal.FileBad
	} else {
		s.logger.Info("[LOADER] document uploaded", "path", docPath, "chunks", res.Chunks, "images", res.Images)
	}

	if _, err := s.watcher.MoveToArchive(path, state); err != nil {
		s.logger.Error("[LOADER] archive file", "path", path, "error", err)
	}
}

func copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
