package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragchat/types"
)

// Memory is an in-process VectorIndex for tests and single-node setups.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]types.IndexRecord
}

func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]map[string]types.IndexRecord)}
}

func (m *Memory) Upsert(_ context.Context, namespace string, records []types.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]types.IndexRecord)
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", types.ErrInvalidArgument)
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		ns[r.ID] = types.IndexRecord{ID: r.ID, Vector: vec, Metadata: meta}
	}
	return nil
}

// Query ranks by cosine similarity; ties are broken by id so repeated
// queries return the same order.
func (m *Memory) Query(_ context.Context, namespace string, vector []float32, topK int) ([]types.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]types.Hit, 0, len(m.namespaces[namespace]))
	for _, r := range m.namespaces[namespace] {
		if len(r.Vector) != len(vector) {
			continue
		}
		hits = append(hits, types.Hit{ID: r.ID, Score: Cosine(vector, r.Vector), Metadata: r.Metadata})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Len returns the number of records in namespace.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
