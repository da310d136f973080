package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds configuration for HashiCorp Vault.
type VaultConfig struct {
	Address   string `json:"address" yaml:"address"`
	Token     string `json:"token" yaml:"token"`
	MountPath string `json:"mount_path" yaml:"mount_path"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// VaultProvider reads KV version 2 secrets. Keys are "path" for the whole
// secret as JSON or "path#field" for one field.
type VaultProvider struct {
	client *vault.Client
	mount  string
}

func NewVaultProvider(cfg VaultConfig) (*VaultProvider, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderInit)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: vault token is required", ErrProviderInit)
	}
	vcfg := vault.DefaultConfig()
	vcfg.Address = strings.TrimRight(cfg.Address, "/")
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInit, err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	mount := strings.Trim(cfg.MountPath, "/")
	if mount == "" {
		mount = "secret"
	}
	return &VaultProvider{client: client, mount: mount}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	path, field := parseVaultKey(key)

	secret, err := p.client.Logical().ReadWithContext(ctx, p.mount+"/data/"+path)
	if err != nil {
		return "", fmt.Errorf("secrets: vault read %q: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return "", fmt.Errorf("%w: no data at %q", ErrNotFound, path)
	}

	if field != "" {
		val, ok := data[field]
		if !ok {
			return "", fmt.Errorf("%w: field %q not found at %q", ErrNotFound, field, path)
		}
		return fmt.Sprintf("%v", val), nil
	}
	out, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("secrets: encode vault data: %w", err)
	}
	return string(out), nil
}

// parseVaultKey splits "path#field" into (path, field).
func parseVaultKey(key string) (path, field string) {
	if idx := strings.LastIndex(key, "#"); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return key, ""
}
