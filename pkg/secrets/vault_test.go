package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/stretchr/testify/require"
)

func TestVault_Disabled(t *testing.T) {
	store, err := NewVault(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Get(ctx, FundingPath("EQabc"))
	require.True(t, errors.Is(err, core.ErrSecretNotFound))

	data := map[string]string{MnemonicKey: "alpha bravo"}
	require.NoError(t, store.Put(ctx, FundingPath("EQabc"), data))

	data[MnemonicKey] = "mutated"
	got, err := store.Get(ctx, FundingPath("EQabc"))
	require.NoError(t, err)
	require.Equal(t, "alpha bravo", got[MnemonicKey])
}

func TestVault_KVv2(t *testing.T) {
	stored := make(map[string]any)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/secret/data/tonpairs/users/7/main", r.URL.Path)
		require.Equal(t, "root", r.Header.Get("X-Vault-Token"))

		switch r.Method {
		case http.MethodPut, http.MethodPost:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			stored = body["data"].(map[string]any)
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"version": 1}})
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"data": stored, "metadata": map[string]any{"version": 1}},
			})
		}
	}))
	defer server.Close()

	cfg := Config{Enabled: true, Address: server.URL, Token: "root", MountPath: "secret", Prefix: "tonpairs"}

	writer, err := NewVault(cfg)
	require.NoError(t, err)
	require.NoError(t, writer.Put(context.Background(), MainWalletPath(7), map[string]string{MnemonicKey: "words"}))

	// a fresh client has no cache and must read through the API
	reader, err := NewVault(cfg)
	require.NoError(t, err)
	got, err := reader.Get(context.Background(), MainWalletPath(7))
	require.NoError(t, err)
	require.Equal(t, "words", got[MnemonicKey])
}
