package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/GoCodeAlone/pipelineapi/config"
	"github.com/GoCodeAlone/pipelineapi/events"
	"github.com/GoCodeAlone/pipelineapi/representer"
	"github.com/GoCodeAlone/pipelineapi/store"
)

func newPipeline(name, label string) *config.PipelineConfig {
	p := config.NewPipelineConfig(name)
	p.LabelTemplate = label
	p.Materials = []config.Material{&config.SvnMaterial{URL: "http://some/svn/url"}}
	p.Stages = []*config.StageConfig{
		config.NewStageConfig("mingle", config.NewJobConfig("defaultJob", &config.ExecTask{Command: "ls"})),
	}
	return p
}

func newFixture(t *testing.T, opts ...Option) (*PipelineConfigService, *store.MemoryPipelineStore, *events.MemoryPublisher) {
	t.Helper()
	st := store.NewMemoryPipelineStore(representer.NewCodec(nil, nil))
	if err := st.SavePipeline(context.Background(), "first", newPipeline("pipeline1", "${COUNT}"), "seed"); err != nil {
		t.Fatal(err)
	}
	pub := &events.MemoryPublisher{}
	opts = append([]Option{WithPublisher(pub)}, opts...)
	return NewPipelineConfigService(st, opts...), st, pub
}

func TestUpdatePipelineConfig_Success(t *testing.T) {
	svc, st, pub := newFixture(t)
	ctx := context.Background()

	var result OperationResult
	svc.UpdatePipelineConfig(ctx, Actor{Username: "admin", Admin: true}, newPipeline("pipeline1", "2.${COUNT}"), &result)
	if !result.IsSuccessful() {
		t.Fatalf("expected success, got %d %s", result.HTTPCode(), result.Message())
	}
	if result.HTTPCode() != http.StatusOK {
		t.Errorf("expected 200, got %d", result.HTTPCode())
	}

	got, err := st.GetPipeline(ctx, "pipeline1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LabelTemplate != "2.${COUNT}" {
		t.Errorf("expected saved label template, got %q", got.LabelTemplate)
	}
	groups, _ := st.ListGroups(ctx)
	if len(groups) != 1 || groups[0].Name != "first" {
		t.Errorf("expected pipeline to stay in its group, got %+v", groups)
	}

	published := pub.Events()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	if published[0].Subject != events.SubjectPipelineUpdated || published[0].Event.Pipeline != "pipeline1" || published[0].Event.Actor != "admin" {
		t.Errorf("unexpected event %+v", published[0])
	}
}

func TestUpdatePipelineConfig_Unauthorized(t *testing.T) {
	svc, st, pub := newFixture(t, WithAuthorizer(AdminAuthorizer{SecurityEnabled: true}))

	var result OperationResult
	svc.UpdatePipelineConfig(context.Background(), Actor{Username: "bob"}, newPipeline("pipeline1", "x-${COUNT}"), &result)
	if result.HTTPCode() != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", result.HTTPCode())
	}
	if result.Message() != "Unauthorized to edit 'pipeline1' pipeline." {
		t.Errorf("unexpected message %q", result.Message())
	}
	got, _ := st.GetPipeline(context.Background(), "pipeline1")
	if got.LabelTemplate != "${COUNT}" {
		t.Error("expected pipeline to be unchanged")
	}
	if len(pub.Events()) != 0 {
		t.Error("expected no events")
	}
}

func TestUpdatePipelineConfig_NotFound(t *testing.T) {
	svc, _, _ := newFixture(t)

	var result OperationResult
	svc.UpdatePipelineConfig(context.Background(), Anonymous, newPipeline("ghost", "${COUNT}"), &result)
	if result.HTTPCode() != http.StatusNotFound || result.Message() != NotFoundMessage {
		t.Fatalf("unexpected result %d %q", result.HTTPCode(), result.Message())
	}
}

func TestUpdatePipelineConfig_ValidationFailure(t *testing.T) {
	svc, st, pub := newFixture(t)

	p := newPipeline("pipeline1", "${COUNT}")
	p.Stages = nil
	var result OperationResult
	svc.UpdatePipelineConfig(context.Background(), Anonymous, p, &result)

	if result.HTTPCode() != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", result.HTTPCode())
	}
	if !strings.HasPrefix(result.Message(), "Validations failed for pipeline 'pipeline1'. Error(s): [") ||
		!strings.HasSuffix(result.Message(), "]. Please correct and resubmit.") {
		t.Errorf("unexpected message %q", result.Message())
	}
	if len(p.AllErrors()) == 0 {
		t.Error("expected errors to be left on the submitted pipeline")
	}
	got, _ := st.GetPipeline(context.Background(), "pipeline1")
	if len(got.Stages) != 1 {
		t.Error("expected stored pipeline to be unchanged")
	}
	if len(pub.Events()) != 0 {
		t.Error("expected no events")
	}
}

func TestUpdatePipelineConfig_DependencyOnOtherPipeline(t *testing.T) {
	svc, st, _ := newFixture(t)
	ctx := context.Background()
	if err := st.SavePipeline(ctx, "first", newPipeline("downstream", "${COUNT}"), "seed"); err != nil {
		t.Fatal(err)
	}

	p := newPipeline("downstream", "${COUNT}")
	p.Materials = append(p.Materials, &config.DependencyMaterial{
		PipelineName: config.NewName("pipeline1"),
		StageName:    config.NewName("mingle"),
	})
	var result OperationResult
	svc.UpdatePipelineConfig(ctx, Anonymous, p, &result)
	if !result.IsSuccessful() {
		t.Fatalf("expected dependency on a stored pipeline to validate, got %q", result.Message())
	}

	p = newPipeline("downstream", "${COUNT}")
	p.Materials = append(p.Materials, &config.DependencyMaterial{
		PipelineName: config.NewName("missing"),
		StageName:    config.NewName("mingle"),
	})
	result = OperationResult{}
	svc.UpdatePipelineConfig(ctx, Anonymous, p, &result)
	if result.HTTPCode() != http.StatusNotAcceptable {
		t.Fatalf("expected unknown upstream to fail validation, got %d", result.HTTPCode())
	}
}

type failingStore struct {
	*store.MemoryPipelineStore
}

func (failingStore) SavePipeline(context.Context, string, *config.PipelineConfig, string) error {
	return errors.New("disk full")
}

func TestUpdatePipelineConfig_SaveFailure(t *testing.T) {
	_, st, _ := newFixture(t)
	svc := NewPipelineConfigService(failingStore{st})

	var result OperationResult
	svc.UpdatePipelineConfig(context.Background(), Anonymous, newPipeline("pipeline1", "2.${COUNT}"), &result)
	if result.HTTPCode() != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", result.HTTPCode())
	}
	if result.Message() != "Save failed. disk full" {
		t.Errorf("unexpected message %q", result.Message())
	}
}

func TestGetPipelineConfig(t *testing.T) {
	svc, _, _ := newFixture(t)
	p, err := svc.GetPipelineConfig(context.Background(), "PIPELINE1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name.String() != "pipeline1" {
		t.Errorf("unexpected name %q", p.Name)
	}
	if _, err := svc.GetPipelineConfig(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	svc, _, _ := newFixture(t)
	revs, ok, err := svc.History(context.Background(), "pipeline1")
	if err != nil || !ok {
		t.Fatalf("expected history, got ok=%v err=%v", ok, err)
	}
	if len(revs) != 1 || revs[0].ChangedBy != "seed" {
		t.Errorf("unexpected revisions %+v", revs)
	}
}

func TestAdminAuthorizer(t *testing.T) {
	ctx := context.Background()
	if !(AdminAuthorizer{}).CanEditPipeline(ctx, Anonymous, "p") {
		t.Error("expected everyone to edit with security disabled")
	}
	secure := AdminAuthorizer{SecurityEnabled: true}
	if secure.CanEditPipeline(ctx, Actor{Username: "bob"}, "p") {
		t.Error("expected non-admin to be refused")
	}
	if !secure.CanEditPipeline(ctx, Actor{Username: "root", Admin: true}, "p") {
		t.Error("expected admin to be allowed")
	}
}

func TestOperationResultZeroValue(t *testing.T) {
	var r OperationResult
	if !r.IsSuccessful() || r.HTTPCode() != http.StatusOK || r.Message() != "" {
		t.Errorf("unexpected zero result %+v", r)
	}
}
