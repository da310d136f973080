// Package plugin describes the task and SCM plugins pipelines may reference
// and which of their configuration properties hold secrets.
package plugin

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Plugin kinds.
const (
	KindTask = "task"
	KindSCM  = "scm"
)

// Manifest is one plugin entry of the registry file.
type Manifest struct {
	ID         string     `yaml:"id" json:"id"`
	Version    string     `yaml:"version" json:"version"`
	Kind       string     `yaml:"kind" json:"kind"`
	Properties []Property `yaml:"properties" json:"properties"`
}

// Property is a configuration key a plugin accepts.
type Property struct {
	Key    string `yaml:"key" json:"key"`
	Secure bool   `yaml:"secure" json:"secure"`
}

var pluginIDRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Validate checks required fields.
func (m *Manifest) Validate() error {
	if !pluginIDRe.MatchString(m.ID) {
		return fmt.Errorf("manifest: invalid plugin id %q", m.ID)
	}
	switch m.Kind {
	case KindTask, KindSCM:
	default:
		return fmt.Errorf("manifest %s: kind must be %q or %q", m.ID, KindTask, KindSCM)
	}
	seen := make(map[string]bool, len(m.Properties))
	for _, p := range m.Properties {
		if p.Key == "" {
			return fmt.Errorf("manifest %s: property key is required", m.ID)
		}
		if seen[p.Key] {
			return fmt.Errorf("manifest %s: duplicate property %q", m.ID, p.Key)
		}
		seen[p.Key] = true
	}
	return nil
}

// Registry holds manifests by plugin id. It answers the codec's question of
// whether a property value must be stored encrypted.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Manifest
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Manifest)}
}

type registryFile struct {
	Plugins []*Manifest `yaml:"plugins"`
}

// LoadRegistry reads a YAML file of the form {plugins: [manifest...]}.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plugin registry: %w", err)
	}
	r := NewRegistry()
	for _, m := range f.Plugins {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a plugin.
func (r *Registry) Register(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest is required")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[m.ID] = m
	return nil
}

func (r *Registry) Get(id string) (*Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.plugins[id]
	return m, ok
}

// List returns manifests sorted by id.
func (r *Registry) List() []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Manifest, 0, len(r.plugins))
	for _, m := range r.plugins {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsSecure reports whether key is a secure property of the plugin. Unknown
// plugins and keys are not secure.
func (r *Registry) IsSecure(pluginID, key string) bool {
	m, ok := r.Get(pluginID)
	if !ok {
		return false
	}
	for _, p := range m.Properties {
		if p.Key == key {
			return p.Secure
		}
	}
	return false
}
