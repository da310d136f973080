package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/GoCodeAlone/pipelineapi/config"
	"gopkg.in/yaml.v3"
)

// SeedActor is recorded as the author of changes applied from a seed file.
const SeedActor = "seed"

// Seed is the YAML file format for bootstrapping a store. Pipelines use the
// same keys as the API documents.
type Seed struct {
	Templates []string    `yaml:"templates"`
	Groups    []SeedGroup `yaml:"groups"`
}

type SeedGroup struct {
	Name      string           `yaml:"name"`
	Pipelines []map[string]any `yaml:"pipelines"`
}

// SeedFile reads a seed from disk.
type SeedFile struct {
	path string
}

func NewSeedFile(path string) *SeedFile { return &SeedFile{path: path} }

func (f *SeedFile) Path() string { return f.path }

// Load parses the file and returns it with the SHA256 of its raw bytes.
func (f *SeedFile) Load() (*Seed, string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, "", fmt.Errorf("seed: read %s: %w", f.path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, "", fmt.Errorf("seed: parse %s: %w", f.path, err)
	}
	sum := sha256.Sum256(data)
	return &seed, hex.EncodeToString(sum[:]), nil
}

// Seeder applies seeds to a store.
type Seeder struct {
	store  PipelineStore
	codec  Codec
	logger *slog.Logger
}

func NewSeeder(store PipelineStore, codec Codec, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, codec: codec, logger: logger}
}

type seededPipeline struct {
	group    string
	pipeline *config.PipelineConfig
}

// Apply validates every pipeline in seed and, when all are valid, saves the
// ones whose stored form differs. It returns the names it saved. Nothing is
// written when any pipeline is invalid.
func (s *Seeder) Apply(ctx context.Context, seed *Seed) ([]string, error) {
	var decoded []seededPipeline
	for _, g := range seed.Groups {
		for i, raw := range g.Pipelines {
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, fmt.Errorf("seed: group %q pipeline %d: %w", g.Name, i, err)
			}
			p, err := s.codec.Unmarshal(data)
			if err != nil {
				return nil, fmt.Errorf("seed: group %q pipeline %d: %w", g.Name, i, err)
			}
			decoded = append(decoded, seededPipeline{group: g.Name, pipeline: p})
		}
	}

	if err := s.validate(ctx, seed, decoded); err != nil {
		return nil, err
	}

	for _, t := range seed.Templates {
		if err := s.store.SaveTemplate(ctx, t); err != nil {
			return nil, err
		}
	}

	var changed []string
	for _, d := range decoded {
		same, err := s.unchanged(ctx, d.pipeline)
		if err != nil {
			return changed, err
		}
		if same {
			continue
		}
		if err := s.store.SavePipeline(ctx, d.group, d.pipeline, SeedActor); err != nil {
			return changed, err
		}
		changed = append(changed, d.pipeline.Name.String())
	}
	s.logger.Info("seed applied", "pipelines", len(decoded), "changed", len(changed))
	return changed, nil
}

func (s *Seeder) validate(ctx context.Context, seed *Seed, decoded []seededPipeline) error {
	pipelines, err := AllPipelines(ctx, s.store)
	if err != nil {
		return err
	}
	byName := make(map[string]*config.PipelineConfig, len(pipelines)+len(decoded))
	for _, p := range pipelines {
		byName[p.Name.Folded()] = p
	}
	for _, d := range decoded {
		byName[d.pipeline.Name.Folded()] = d.pipeline
	}
	all := make([]*config.PipelineConfig, 0, len(byName))
	for _, p := range byName {
		all = append(all, p)
	}

	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return err
	}
	templates = append(templates, seed.Templates...)

	vctx := config.NewValidationContext(all, templates)
	var problems []string
	for _, d := range decoded {
		if !config.ValidateTree(d.pipeline, vctx) {
			problems = append(problems, fmt.Sprintf("%s: %s", d.pipeline.Name, strings.Join(d.pipeline.AllErrors(), ", ")))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("seed: invalid pipelines: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *Seeder) unchanged(ctx context.Context, p *config.PipelineConfig) (bool, error) {
	current, err := s.store.GetPipeline(ctx, p.Name.String())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a, err := s.codec.Marshal(current)
	if err != nil {
		return false, err
	}
	b, err := s.codec.Marshal(p)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}
