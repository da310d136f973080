package store

import (
	"context"
	"time"

	"github.com/GoCodeAlone/pipelineapi/config"
)

// DefaultGroup receives pipelines saved without a group.
const DefaultGroup = "defaultGroup"

// PipelineStore persists pipeline configuration. Pipelines are addressed by
// name without regard to case. Every call returns a fresh object graph, so
// callers may mutate what they get back.
type PipelineStore interface {
	// GetPipeline returns ErrNotFound when no pipeline has the name.
	GetPipeline(ctx context.Context, name string) (*config.PipelineConfig, error)
	// SavePipeline creates or replaces a pipeline. An empty group keeps the
	// pipeline where it is, or puts a new one in DefaultGroup.
	SavePipeline(ctx context.Context, group string, p *config.PipelineConfig, actor string) error
	// ListGroups returns groups ordered by name, pipelines in creation order.
	ListGroups(ctx context.Context) ([]*config.PipelineGroup, error)
	// ListTemplates returns the names of known pipeline templates.
	ListTemplates(ctx context.Context) ([]string, error)
	// SaveTemplate registers a template name.
	SaveTemplate(ctx context.Context, name string) error
}

// Revision is one entry of a pipeline's change history.
type Revision struct {
	Name      string
	Version   int
	ChangedBy string
	ChangedAt time.Time
	Data      []byte
}

// HistoryStore is implemented by stores that keep every saved version.
type HistoryStore interface {
	History(ctx context.Context, name string) ([]Revision, error)
}

// AllPipelines flattens the groups of s.
func AllPipelines(ctx context.Context, s PipelineStore) ([]*config.PipelineConfig, error) {
	groups, err := s.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	var out []*config.PipelineConfig
	for _, g := range groups {
		out = append(out, g.Pipelines...)
	}
	return out, nil
}

func groupOrDefault(group string) string {
	if group == "" {
		return DefaultGroup
	}
	return group
}

// Codec is the encoding stores persist pipelines with.
type Codec interface {
	Marshal(p *config.PipelineConfig) ([]byte, error)
	Unmarshal(data []byte) (*config.PipelineConfig, error)
}
