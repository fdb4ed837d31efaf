package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ragchat/types"
)

type ProviderConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Factory func(ctx context.Context, cfg ProviderConfig) (Completer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an LLM provider available by name. It is called from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func NewCompleter(ctx context.Context, name string, cfg ProviderConfig) (Completer, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown llm provider %q (have %v)", types.ErrConfiguration, name, Providers())
	}
	return f(ctx, cfg)
}

func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
