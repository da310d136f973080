package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoCodeAlone/pipelineapi/config"
)

type memRecord struct {
	group    string
	position int
	history  []Revision
}

func (r *memRecord) latest() Revision { return r.history[len(r.history)-1] }

// MemoryPipelineStore keeps pipelines in process memory, encoded with the
// same codec the SQL stores use so no object graph is ever shared.
type MemoryPipelineStore struct {
	codec Codec

	mu        sync.RWMutex
	records   map[string]*memRecord
	templates map[string]string
	next      int
}

func NewMemoryPipelineStore(codec Codec) *MemoryPipelineStore {
	return &MemoryPipelineStore{
		codec:     codec,
		records:   make(map[string]*memRecord),
		templates: make(map[string]string),
	}
}

func (s *MemoryPipelineStore) GetPipeline(_ context.Context, name string) (*config.PipelineConfig, error) {
	s.mu.RLock()
	rec, ok := s.records[config.NewName(name).Folded()]
	var data []byte
	if ok {
		data = rec.latest().Data
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	return s.codec.Unmarshal(data)
}

func (s *MemoryPipelineStore) SavePipeline(_ context.Context, group string, p *config.PipelineConfig, actor string) error {
	data, err := s.codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pipeline %q: %w", p.Name, err)
	}
	key := p.Name.Folded()

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		s.next++
		rec = &memRecord{group: groupOrDefault(group), position: s.next}
		s.records[key] = rec
	} else if group != "" {
		rec.group = group
	}
	rec.history = append(rec.history, Revision{
		Name:      p.Name.String(),
		Version:   len(rec.history) + 1,
		ChangedBy: actor,
		ChangedAt: time.Now().UTC(),
		Data:      data,
	})
	return nil
}

func (s *MemoryPipelineStore) ListGroups(_ context.Context) ([]*config.PipelineGroup, error) {
	s.mu.RLock()
	type entry struct {
		group    string
		position int
		data     []byte
	}
	entries := make([]entry, 0, len(s.records))
	for _, rec := range s.records {
		entries = append(entries, entry{rec.group, rec.position, rec.latest().Data})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].group != entries[j].group {
			return entries[i].group < entries[j].group
		}
		return entries[i].position < entries[j].position
	})

	var groups []*config.PipelineGroup
	for _, e := range entries {
		p, err := s.codec.Unmarshal(e.data)
		if err != nil {
			return nil, err
		}
		if len(groups) == 0 || groups[len(groups)-1].Name != e.group {
			groups = append(groups, &config.PipelineGroup{Name: e.group})
		}
		g := groups[len(groups)-1]
		g.Pipelines = append(g.Pipelines, p)
	}
	return groups, nil
}

func (s *MemoryPipelineStore) ListTemplates(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.templates))
	for _, name := range s.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryPipelineStore) SaveTemplate(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[config.NewName(name).Folded()] = name
	return nil
}

// History implements HistoryStore.
func (s *MemoryPipelineStore) History(_ context.Context, name string) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[config.NewName(name).Folded()]
	if !ok {
		return nil, fmt.Errorf("pipeline %q: %w", name, ErrNotFound)
	}
	return append([]Revision(nil), rec.history...), nil
}
