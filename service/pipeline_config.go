// Package service implements the pipeline configuration operations behind
// the admin API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/pipelineapi/config"
	"github.com/GoCodeAlone/pipelineapi/events"
	"github.com/GoCodeAlone/pipelineapi/observability"
	"github.com/GoCodeAlone/pipelineapi/observability/tracing"
	"github.com/GoCodeAlone/pipelineapi/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Update outcomes, as recorded in metrics.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// PipelineConfigService reads and updates pipeline configuration.
type PipelineConfigService struct {
	store     store.PipelineStore
	auth      Authorizer
	publisher events.Publisher
	metrics   *observability.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a PipelineConfigService.
type Option func(*PipelineConfigService)

func WithAuthorizer(a Authorizer) Option {
	return func(s *PipelineConfigService) { s.auth = a }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *PipelineConfigService) { s.publisher = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *PipelineConfigService) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *PipelineConfigService) { s.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *PipelineConfigService) { s.logger = l }
}

// NewPipelineConfigService returns a service over st. Without options
// security is disabled and no events are published.
func NewPipelineConfigService(st store.PipelineStore, opts ...Option) *PipelineConfigService {
	s := &PipelineConfigService{
		store:     st,
		auth:      AdminAuthorizer{},
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = tracing.Tracer()
	}
	return s
}

// GetPipelineConfig loads a pipeline. A missing pipeline yields an error
// matching store.ErrNotFound.
func (s *PipelineConfigService) GetPipelineConfig(ctx context.Context, name string) (p *config.PipelineConfig, err error) {
	ctx, span := tracing.StartPipelineSpan(ctx, s.tracer, "get", name)
	defer func() {
		if errors.Is(err, store.ErrNotFound) {
			tracing.Finish(span, nil)
			return
		}
		tracing.Finish(span, err)
	}()
	return s.store.GetPipeline(ctx, name)
}

// UpdatePipelineConfig validates and saves p on behalf of actor. Failures
// are reported through result; p carries the validation errors when the
// result is NotAcceptable.
func (s *PipelineConfigService) UpdatePipelineConfig(ctx context.Context, actor Actor, p *config.PipelineConfig, result *OperationResult) {
	name := p.Name.String()
	ctx, span := tracing.StartPipelineSpan(ctx, s.tracer, "update", name)
	var spanErr error
	defer func() { tracing.Finish(span, spanErr) }()

	outcome := s.update(ctx, actor, p, result)
	tracing.Annotate(ctx, attribute.String("pipeline.update.outcome", outcome))
	if outcome == OutcomeError {
		spanErr = errors.New(result.Message())
	}
	s.metrics.RecordUpdate(outcome)
}

func (s *PipelineConfigService) update(ctx context.Context, actor Actor, p *config.PipelineConfig, result *OperationResult) string {
	name := p.Name.String()

	if !s.auth.CanEditPipeline(ctx, actor, name) {
		result.Unauthorized(fmt.Sprintf("Unauthorized to edit '%s' pipeline.", name))
		return OutcomeUnauthorized
	}

	if _, err := s.store.GetPipeline(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			result.NotFound(NotFoundMessage)
			return OutcomeNotFound
		}
		result.InternalServerError("Save failed. " + err.Error())
		return OutcomeError
	}

	vctx, err := s.validationContext(ctx, p)
	if err != nil {
		result.InternalServerError("Save failed. " + err.Error())
		return OutcomeError
	}
	if !config.ValidateTree(p, vctx) {
		result.NotAcceptable(fmt.Sprintf("Validations failed for pipeline '%s'. Error(s): [%s]. Please correct and resubmit.",
			name, strings.Join(p.AllErrors(), ", ")))
		return OutcomeInvalid
	}

	if err := s.store.SavePipeline(ctx, "", p, actor.Username); err != nil {
		s.logger.Error("pipeline save failed", "pipeline", name, "actor", actor.Username, "error", err)
		result.InternalServerError("Save failed. " + err.Error())
		return OutcomeError
	}

	evt := events.NewEvent(events.SubjectPipelineUpdated, name, actor.Username)
	if err := s.publisher.Publish(ctx, events.SubjectPipelineUpdated, evt); err != nil {
		// The change is saved; subscribers can catch up from the store.
		s.logger.Warn("publish pipeline update failed", "pipeline", name, "error", err)
	}
	s.logger.Info("pipeline updated", "pipeline", name, "actor", actor.Username)
	return OutcomeSuccess
}

// validationContext sees the stored pipelines with p in place of its
// stored version.
func (s *PipelineConfigService) validationContext(ctx context.Context, p *config.PipelineConfig) (*config.ValidationContext, error) {
	stored, err := store.AllPipelines(ctx, s.store)
	if err != nil {
		return nil, err
	}
	pipelines := make([]*config.PipelineConfig, 0, len(stored))
	for _, other := range stored {
		if other.Name.Equal(p.Name) {
			continue
		}
		pipelines = append(pipelines, other)
	}
	pipelines = append(pipelines, p)

	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return config.NewValidationContext(pipelines, templates), nil
}

// ListGroups returns every pipeline group.
func (s *PipelineConfigService) ListGroups(ctx context.Context) ([]*config.PipelineGroup, error) {
	return s.store.ListGroups(ctx)
}

// History returns the saved versions of a pipeline when the store keeps
// them. ok is false for stores without history.
func (s *PipelineConfigService) History(ctx context.Context, name string) (revs []store.Revision, ok bool, err error) {
	hs, ok := s.store.(store.HistoryStore)
	if !ok {
		return nil, false, nil
	}
	revs, err = hs.History(ctx, name)
	return revs, true, err
}
