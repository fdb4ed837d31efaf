package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"ragchat/app/api"
	"ragchat/app/middleware"
	"ragchat/config"
)

const bodyLimit = 64 << 20

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *fiber.App
}

func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// NewApp registers the routes on a fresh fiber app.
func NewApp(cfg *config.Config, c *Components, logger *slog.Logger) *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    bodyLimit,
		})
		checkHandler    = api.NewCheckHandler(c.Store)
		chatHandler     = api.NewChatHandler(c.Store, c.Store, c.Agent, cfg.ChatImageFolder, logger)
		documentHandler = api.NewDocumentHandler(c.Store, c.Ingestor, cfg.DocFolder, logger)
		imageHandler    = api.NewImageHandler(cfg.ImageFolder)
	)
	app.Use(middleware.RequestLogger(logger, "/check"))

	var (
		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/ready", checkHandler.HandleReady)

	apiv1.Post("/upload-document", documentHandler.HandleUpload)
	apiv1.Get("/documents", documentHandler.HandleListDocuments)
	apiv1.Post("/chat", chatHandler.HandleChat)
	apiv1.Get("/getuserchats/:user_id", chatHandler.HandleUserChats)
	apiv1.Get("/get-image", imageHandler.HandleGetImage)
	return app
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	components, err := Build(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	s.app = NewApp(s.cfg, components, s.logger)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.cfg.ServerAddr)
		errCh <- s.app.Listen(s.cfg.ServerAddr)
	}()

	select {
	case err := <-errCh:
		s.logger.Error("error to start server", "error", err)
		return err
	case <-ctx.Done():
	}
	s.Stop()
	return nil
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Error("server shutdown", "error", err)
		}
	}
	s.logger.Info("server stopped")
}
