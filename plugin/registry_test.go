package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

const registryYAML = `
plugins:
  - id: cd.go.task.docker
    version: 1.2.0
    kind: task
    properties:
      - key: image
      - key: registry_password
        secure: true
  - id: github.pr
    kind: scm
    properties:
      - key: url
      - key: token
        secure: true
`

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	if err := os.WriteFile(path, []byte(registryYAML), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != "cd.go.task.docker" || list[1].ID != "github.pr" {
		t.Fatalf("unexpected plugins %+v", list)
	}

	cases := []struct {
		plugin, key string
		want        bool
	}{
		{"cd.go.task.docker", "registry_password", true},
		{"cd.go.task.docker", "image", false},
		{"cd.go.task.docker", "unknown", false},
		{"github.pr", "token", true},
		{"not.installed", "token", false},
	}
	for _, tc := range cases {
		if got := r.IsSecure(tc.plugin, tc.key); got != tc.want {
			t.Errorf("IsSecure(%s, %s) = %v, want %v", tc.plugin, tc.key, got, tc.want)
		}
	}
}

func TestLoadRegistryErrors(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("plugins:\n  - id: x\n    kind: widget\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestManifestValidate(t *testing.T) {
	cases := map[string]*Manifest{
		"empty id":      {Kind: KindTask},
		"bad id":        {ID: "-x", Kind: KindTask},
		"blank key":     {ID: "x", Kind: KindTask, Properties: []Property{{}}},
		"duplicate key": {ID: "x", Kind: KindSCM, Properties: []Property{{Key: "a"}, {Key: "a"}}},
	}
	for name, m := range cases {
		if err := m.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	ok := &Manifest{ID: "x", Kind: KindSCM, Properties: []Property{{Key: "a"}, {Key: "b", Secure: true}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid manifest, got %v", err)
	}
	if err := NewRegistry().Register(nil); err == nil {
		t.Error("expected error registering nil")
	}
}
