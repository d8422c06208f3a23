// Package secrets stores signing material outside of the user records.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
	"github.com/raykavin/tonpairs/pkg/core"
)

// Config holds the Vault connection settings
type Config struct {
	Enabled   bool
	Address   string
	Token     string
	MountPath string // KV v2 mount, e.g. "secret"
	Prefix    string // path prefix inside the mount, e.g. "tonpairs"
	CACert    string
}

// Vault implements core.SecretStore on a KV v2 engine. When disabled,
// secrets live in process memory only, which is meant for development.
type Vault struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]map[string]string
}

// NewVault creates a secret store from the configuration
func NewVault(cfg Config) (*Vault, error) {
	store := &Vault{
		config: cfg,
		cache:  make(map[string]map[string]string),
	}

	if !cfg.Enabled {
		return store, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	store.client = client
	return store, nil
}

// Get reads the secret at path
func (v *Vault) Get(ctx context.Context, path string) (map[string]string, error) {
	v.mu.RLock()
	cached, ok := v.cache[path]
	v.mu.RUnlock()
	if ok {
		return copyData(cached), nil
	}

	if !v.config.Enabled {
		return nil, fmt.Errorf("%s: %w", path, core.ErrSecretNotFound)
	}

	secret, err := v.client.Logical().ReadWithContext(ctx, v.dataPath(path))
	if err != nil {
		return nil, core.NewExternalError("vault", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%s: %w", path, core.ErrSecretNotFound)
	}

	raw, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: invalid secret format", path)
	}

	data := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := value.(string); ok {
			data[key] = s
		}
	}

	v.mu.Lock()
	v.cache[path] = data
	v.mu.Unlock()

	return copyData(data), nil
}

// Put writes the secret at path, replacing any previous version
func (v *Vault) Put(ctx context.Context, path string, data map[string]string) error {
	if v.config.Enabled {
		payload := make(map[string]any, len(data))
		for key, value := range data {
			payload[key] = value
		}

		_, err := v.client.Logical().WriteWithContext(ctx, v.dataPath(path), map[string]any{"data": payload})
		if err != nil {
			return core.NewExternalError("vault", err)
		}
	}

	v.mu.Lock()
	v.cache[path] = copyData(data)
	v.mu.Unlock()

	return nil
}

func (v *Vault) dataPath(path string) string {
	parts := []string{strings.Trim(v.config.MountPath, "/"), "data"}
	if prefix := strings.Trim(v.config.Prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	return strings.Join(append(parts, strings.Trim(path, "/")), "/")
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		out[key] = value
	}
	return out
}

// FundingPath is where the mnemonic of a funding wallet is kept
func FundingPath(address string) string {
	return "funding/" + address
}

// MainWalletPath is where a user's connected mnemonic is kept
func MainWalletPath(userID int64) string {
	return fmt.Sprintf("users/%d/main", userID)
}

// MnemonicKey is the field holding mnemonic words inside a secret
const MnemonicKey = "mnemonic"
