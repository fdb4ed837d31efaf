package server

import (
	"context"
	"fmt"
	"log/slog"

	"ragchat/app/agent"
	"ragchat/app/retriever"
	"ragchat/config"
	"ragchat/index"
	"ragchat/loader/service"
	"ragchat/model"
	"ragchat/store"
)

const (
	textTable  = "text_chunks"
	imageTable = "image_chunks"
)

// Components is the wired object graph shared by the HTTP server and the
// CLI commands.
type Components struct {
	Store     *store.PostgresStore
	Ingestor  *service.Ingestor
	Retriever *retriever.Retriever
	Agent     *agent.Agent
}

func (c *Components) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}

// Build connects to Postgres, creates the tables and wires every component
// from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()
	if err := db.Init(ctx); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	textIndex, imageIndex, err := buildIndexes(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}

	tok, err := model.NewTiktoken()
	if err != nil {
		return nil, err
	}
	mm, err := model.NewMultimodal(model.NewClipClient(cfg.Embedding.ClipURL),
		model.WithMaxTokens(cfg.Embedding.ClipMaxTokens),
		model.WithWeights(cfg.Embedding.ImageWeight, cfg.Embedding.TextWeight))
	if err != nil {
		return nil, err
	}
	managed := index.NewManaged(textEmbedder(cfg.Embedding), textIndex, cfg.IngestWorkers, logger)

	llm, err := buildLLM(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	profiles := cfg.LLM.Profiles

	ingestor, err := service.NewIngestor(service.Options{
		ImageFolder:  cfg.ImageFolder,
		ChunkSize:    cfg.Chunk.Size,
		ChunkOverlap: cfg.Chunk.Overlap,
		BatchSize:    cfg.UpsertBatchSize,
		ContextChars: cfg.ContextChars,
		Workers:      cfg.IngestWorkers,
	}, service.Deps{
		Store:      db,
		Text:       managed,
		Images:     imageIndex,
		Embedder:   mm,
		Describer:  model.NewDescriber(llm, modelProfile(profiles[config.RoleDescribe])),
		Summarizer: model.NewSummarizer(llm, modelProfile(profiles[config.RoleSummarize])),
		Tokenizer:  tok,
	}, logger)
	if err != nil {
		return nil, err
	}

	ret := retriever.New(managed, imageIndex, mm, logger)
	ag := agent.New(llm, ret, agent.Profiles{
		Classify: modelProfile(profiles[config.RoleClassify]),
		Respond:  modelProfile(profiles[config.RoleRespond]),
	}, cfg.ImageFolder, logger)

	ok = true
	return &Components{
		Store:     db,
		Ingestor:  ingestor,
		Retriever: ret,
		Agent:     ag,
	}, nil
}

func buildIndexes(ctx context.Context, cfg *config.Config, db *store.PostgresStore, logger *slog.Logger) (index.VectorIndex, index.VectorIndex, error) {
	if cfg.VectorBackend == "memory" {
		logger.Warn("Using in-memory vector index, vectors are lost on restart")
		return index.NewMemory(), index.NewMemory(), nil
	}
	text := index.NewPgVector(db.Pool(), textTable, cfg.Embedding.TextDim, logger)
	images := index.NewPgVector(db.Pool(), imageTable, cfg.Embedding.ImageDim, logger)
	for _, idx := range []*index.PgVector{text, images} {
		if err := idx.Init(ctx); err != nil {
			return nil, nil, err
		}
	}
	return text, images, nil
}

func textEmbedder(cfg config.EmbeddingConfig) model.TextEmbedder {
	var e model.TextEmbedder
	switch cfg.TextProvider {
	case "openai":
		e = model.NewOpenAIEmbedder(cfg.TextURL, cfg.TextAPIKey, cfg.TextModel)
	default:
		e = model.NewOllamaEmbedder(cfg.TextURL, cfg.TextModel)
	}
	if cfg.CacheSize > 0 {
		e = model.WithCache(e, cfg.CacheSize, cfg.CacheTTL)
	}
	return e
}

func buildLLM(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (model.Completer, error) {
	llm, err := model.NewCompleter(ctx, cfg.Provider, model.ProviderConfig{
		URL:     cfg.URL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	limited := model.WithRateLimit(llm, cfg.RPS, 1)
	return model.WithRetry(limited, cfg.MaxAttempts, logger), nil
}

func modelProfile(p config.Profile) model.Profile {
	return model.Profile{Model: p.Model, Temperature: p.Temperature}
}
