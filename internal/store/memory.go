package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// Memory implements core.JobRepository and core.DocumentStore in process.
// It backs the CLI and STORAGE_BACKEND=memory.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]core.ImportJob
	docs map[string]memoryDoc
}

type memoryDoc struct {
	data []byte
	meta core.DocumentMeta
}

func NewMemory() *Memory {
	return &Memory{
		jobs: make(map[string]core.ImportJob),
		docs: make(map[string]memoryDoc),
	}
}

func (m *Memory) FindByID(_ context.Context, id string) (*core.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	return &job, nil
}

func (m *Memory) Create(_ context.Context, job *core.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("import job %s already exists", job.ID)
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *Memory) Save(_ context.Context, job *core.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, job.ID)
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *Memory) List(_ context.Context, filter core.JobFilter) ([]core.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.ImportJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if filter.EntityType != "" && j.EntityType != filter.EntityType {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Documents returns m as a core.DocumentStore. Both roles need a Create
// method, so documents live on their own type over the same storage.
func (m *Memory) Documents() *MemoryDocuments { return (*MemoryDocuments)(m) }

// MemoryDocuments is Memory seen as a core.DocumentStore.
type MemoryDocuments Memory

func (d *MemoryDocuments) Create(_ context.Context, doc core.Document) (string, error) {
	m := (*Memory)(d)
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.docs[id] = memoryDoc{
		data: append([]byte(nil), doc.Data...),
		meta: core.DocumentMeta{FileName: doc.FileName, ContentType: doc.ContentType},
	}
	return id, nil
}

func (d *MemoryDocuments) Load(_ context.Context, id string) ([]byte, error) {
	m := (*Memory)(d)
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return append([]byte(nil), doc.data...), nil
}

func (d *MemoryDocuments) Update(_ context.Context, id string, data []byte, meta core.DocumentMeta) error {
	m := (*Memory)(d)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	m.docs[id] = memoryDoc{data: append([]byte(nil), data...), meta: meta}
	return nil
}

// Meta returns what the last Update recorded for a document.
func (d *MemoryDocuments) Meta(id string) (core.DocumentMeta, bool) {
	m := (*Memory)(d)
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc.meta, ok
}
