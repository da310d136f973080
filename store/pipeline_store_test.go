package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/GoCodeAlone/pipelineapi/config"
	"github.com/GoCodeAlone/pipelineapi/representer"
)

func testPipeline(name, label string) *config.PipelineConfig {
	p := config.NewPipelineConfig(name)
	p.LabelTemplate = label
	p.Materials = []config.Material{&config.SvnMaterial{URL: "http://some/svn/url"}}
	p.Stages = []*config.StageConfig{
		config.NewStageConfig("mingle", config.NewJobConfig("defaultJob", &config.ExecTask{Command: "ls"})),
	}
	return p
}

func storeBackends(t *testing.T) map[string]PipelineStore {
	t.Helper()
	codec := representer.NewCodec(nil, nil)
	sqlite, err := NewSQLitePipelineStore(":memory:", codec)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]PipelineStore{
		"memory": NewMemoryPipelineStore(codec),
		"sqlite": sqlite,
	}
}

func TestPipelineStore_GetMissing(t *testing.T) {
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetPipeline(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPipelineStore_SaveAndGetIgnoresCase(t *testing.T) {
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.SavePipeline(ctx, "first", testPipeline("Pipeline1", "1.${COUNT}"), "admin"); err != nil {
				t.Fatal(err)
			}
			got, err := s.GetPipeline(ctx, "PIPELINE1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Name.String() != "Pipeline1" {
				t.Errorf("expected stored name casing, got %q", got.Name)
			}
			if got.LabelTemplate != "1.${COUNT}" {
				t.Errorf("unexpected label template %q", got.LabelTemplate)
			}
			svn, ok := got.Materials[0].(*config.SvnMaterial)
			if !ok || svn.URL != "http://some/svn/url" {
				t.Errorf("unexpected material %#v", got.Materials[0])
			}
		})
	}
}

func TestPipelineStore_ReturnsFreshCopies(t *testing.T) {
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := testPipeline("p1", "${COUNT}")
			if err := s.SavePipeline(ctx, "", p, "admin"); err != nil {
				t.Fatal(err)
			}
			p.LabelTemplate = "mutated"
			got, _ := s.GetPipeline(ctx, "p1")
			got.LabelTemplate = "mutated again"
			again, _ := s.GetPipeline(ctx, "p1")
			if again.LabelTemplate != "${COUNT}" {
				t.Fatalf("expected stored value untouched, got %q", again.LabelTemplate)
			}
		})
	}
}

func TestPipelineStore_UpdateKeepsGroup(t *testing.T) {
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			must(t, s.SavePipeline(ctx, "second", testPipeline("b", "${COUNT}"), "admin"))
			must(t, s.SavePipeline(ctx, "first", testPipeline("a", "${COUNT}"), "admin"))
			must(t, s.SavePipeline(ctx, "first", testPipeline("c", "${COUNT}"), "admin"))
			must(t, s.SavePipeline(ctx, "", testPipeline("d", "${COUNT}"), "admin"))
			must(t, s.SavePipeline(ctx, "", testPipeline("B", "v2-${COUNT}"), "admin"))

			groups, err := s.ListGroups(ctx)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, g := range groups {
				for _, p := range g.Pipelines {
					got = append(got, g.Name+"/"+p.Name.String())
				}
			}
			want := []string{"defaultGroup/d", "first/a", "first/c", "second/B"}
			if len(got) != len(want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("expected %v, got %v", want, got)
				}
			}
		})
	}
}

func TestPipelineStore_History(t *testing.T) {
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			must(t, s.SavePipeline(ctx, "g", testPipeline("p1", "${COUNT}"), "alice"))
			must(t, s.SavePipeline(ctx, "", testPipeline("p1", "2-${COUNT}"), "bob"))

			hs, ok := s.(HistoryStore)
			if !ok {
				t.Fatal("expected store to keep history")
			}
			revs, err := hs.History(ctx, "P1")
			if err != nil {
				t.Fatal(err)
			}
			if len(revs) != 2 {
				t.Fatalf("expected 2 revisions, got %d", len(revs))
			}
			if revs[0].Version != 1 || revs[0].ChangedBy != "alice" {
				t.Errorf("unexpected first revision %+v", revs[0])
			}
			if revs[1].Version != 2 || revs[1].ChangedBy != "bob" {
				t.Errorf("unexpected second revision %+v", revs[1])
			}
			if _, err := hs.History(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPipelineStore_Templates(t *testing.T) {
	for name, s := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			must(t, s.SaveTemplate(ctx, "zeta"))
			must(t, s.SaveTemplate(ctx, "alpha"))
			must(t, s.SaveTemplate(ctx, "ALPHA"))
			names, err := s.ListTemplates(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(names) != 2 || names[0] != "ALPHA" || names[1] != "zeta" {
				t.Fatalf("unexpected templates %v", names)
			}
		})
	}
}

type reverseCipher struct{}

func (reverseCipher) Encrypt(s string) (string, error) { return "rev:" + reverse(s), nil }

func (reverseCipher) Decrypt(s string) (string, error) {
	return reverse(strings.TrimPrefix(s, "rev:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestPipelineStore_KeepsEncryptedPassword(t *testing.T) {
	codec := representer.NewCodec(reverseCipher{}, nil)
	doc, err := representer.ParseDocument(strings.NewReader(`{"name":"p1","materials":[
	  {"type":"SvnMaterial","attributes":{"url":"http://svn","username":"bob","password":"pw"}}],
	  "stages":[{"name":"s","jobs":[{"name":"j","tasks":[{"type":"exec","attributes":{"command":"ls"}}]}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	p, err := codec.Decode(doc)
	if err != nil {
		t.Fatal(err)
	}

	s := NewMemoryPipelineStore(codec)
	ctx := context.Background()
	must(t, s.SavePipeline(ctx, "", p, "admin"))
	got, err := s.GetPipeline(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	svn := got.Materials[0].(*config.SvnMaterial)
	if svn.Username != "bob" || svn.EncryptedPassword != "rev:wp" {
		t.Fatalf("unexpected credentials %+v", svn.Credentials)
	}
}

func TestAllPipelines(t *testing.T) {
	s := NewMemoryPipelineStore(representer.NewCodec(nil, nil))
	ctx := context.Background()
	must(t, s.SavePipeline(ctx, "a", testPipeline("one", "${COUNT}"), "admin"))
	must(t, s.SavePipeline(ctx, "b", testPipeline("two", "${COUNT}"), "admin"))
	all, err := AllPipelines(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(all))
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
