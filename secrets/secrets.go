// Package secrets resolves secret:// references in server settings.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SecretPrefix marks a setting whose value lives in a secret provider:
// secret://<provider>/<key>.
const SecretPrefix = "secret://"

var (
	ErrNotFound     = errors.New("secrets: secret not found")
	ErrInvalidKey   = errors.New("secrets: invalid key")
	ErrProviderInit = errors.New("secrets: provider initialization failed")
)

// Provider is a read-only secret backend.
type Provider interface {
	Name() string
	Get(ctx context.Context, key string) (string, error)
}

// EnvProvider reads environment variables. "database.password" is looked
// up as DATABASE_PASSWORD, after the optional prefix.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider { return &EnvProvider{prefix: prefix} }

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	name := strings.ToUpper(p.prefix + strings.ReplaceAll(key, ".", "_"))
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: env var %s", ErrNotFound, name)
	}
	return val, nil
}

// FileProvider reads one secret per file, as mounted by Kubernetes secret
// volumes. Trailing newlines are dropped.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) *FileProvider { return &FileProvider{dir: dir} }

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	data, err := os.ReadFile(filepath.Join(p.dir, key))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("secrets: read %s: %w", key, err)
	}
	return strings.TrimRight(string(data), "\n\r"), nil
}

// Resolver dispatches secret:// references to providers by name.
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewResolver registers the given providers under their names. The env
// provider is always available.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: map[string]Provider{"env": NewEnvProvider("")}}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Resolver) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Providers returns the registered provider names, sorted.
func (r *Resolver) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns value unchanged unless it is a secret:// reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, SecretPrefix) {
		return value, nil
	}
	ref := strings.TrimPrefix(value, SecretPrefix)
	name, key, ok := strings.Cut(ref, "/")
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, value)
	}
	r.mu.RLock()
	p, found := r.providers[name]
	r.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("secrets: unknown provider %q in %s", name, value)
	}
	return p.Get(ctx, key)
}

// ResolveAll resolves every pointer in place, stopping at the first error.
func (r *Resolver) ResolveAll(ctx context.Context, values ...*string) error {
	for _, v := range values {
		resolved, err := r.Resolve(ctx, *v)
		if err != nil {
			return err
		}
		*v = resolved
	}
	return nil
}
