package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/rest"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima " +
	"mike november oscar papa quebec romeo sierra tango uniform victor whiskey xray"

func testAddress(fill byte, bounceable bool) string {
	var hash [32]byte
	for i := range hash {
		hash[i] = fill
	}
	return EncodeAddress(0, hash, bounceable)
}

func TestValidatePairAddress(t *testing.T) {
	valid := testAddress('A', true)
	urlAlphabet := testAddress(0xff, true)
	stdAlphabet := strings.NewReplacer("-", "+", "_", "/").Replace(urlAlphabet)

	tt := []struct {
		name    string
		address string
		ok      bool
	}{
		{"bounceable", valid, true},
		{"url alphabet", urlAlphabet, true},
		{"std alphabet", stdAlphabet, true},
		{"lower prefix", "eq" + valid[2:], false},
		{"wrong prefix", testAddress('A', false), false},
		{"ethereum", "0x" + strings.Repeat("a", 46), false},
		{"short", "EQ" + strings.Repeat("A", 10), false},
		{"bad chars", "EQ" + strings.Repeat("!", 46), false},
		{"bad checksum", "EQ" + strings.Repeat("A", 46), false},
		{"empty", "", false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePairAddress(tc.address)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, core.IsValidation(err))
		})
	}
}

func TestValidateAddress(t *testing.T) {
	var hash [32]byte
	hash[0] = 7

	require.NoError(t, ValidateAddress(testAddress('A', false)))
	require.NoError(t, ValidateAddress(EncodeAddress(-1, hash, true)))
	require.NoError(t, ValidateAddress(encodeAddress(tagBounceable|tagTestOnly, 0, hash)))
	require.NoError(t, ValidateAddress(encodeAddress(tagNonBounceable|tagTestOnly, 0, hash)))

	require.ErrorContains(t, ValidateAddress(encodeAddress(0x22, 0, hash)), "unknown tag")
	require.ErrorContains(t, ValidateAddress(encodeAddress(tagBounceable, 5, hash)), "unknown workchain")

	valid := EncodeAddress(0, hash, true)
	last := "B"
	if valid[47] == 'B' {
		last = "C"
	}
	require.ErrorContains(t, ValidateAddress(valid[:47]+last), "bad checksum")
}

func TestEncodeAddress(t *testing.T) {
	var hash [32]byte
	bounceable := EncodeAddress(0, hash, true)
	require.Len(t, bounceable, AddressLength)
	require.True(t, strings.HasPrefix(bounceable, "EQ"))
	require.NoError(t, ValidatePairAddress(bounceable))

	nonBounceable := EncodeAddress(0, hash, false)
	require.True(t, strings.HasPrefix(nonBounceable, "UQ"))
	require.NoError(t, ValidateAddress(nonBounceable))
}

func TestCRC16(t *testing.T) {
	// CRC-16/XMODEM check value
	require.Equal(t, uint16(0x31C3), crc16([]byte("123456789")))
}

func TestToNano(t *testing.T) {
	require.Equal(t, "1500000000", ToNano(1.5))
	require.Equal(t, "10000000", ToNano(0.01))
	require.Equal(t, "0", ToNano(0))

	value, err := FromNano("2500000000")
	require.NoError(t, err)
	require.InDelta(t, 2.5, value, 1e-9)

	_, err = FromNano("abc")
	require.Error(t, err)
}

func TestSplitMnemonic(t *testing.T) {
	words := SplitMnemonic(`  "Alpha  BRAVO charlie" `)
	require.Equal(t, []string{"alpha", "bravo", "charlie"}, words)
}

func TestValidateMnemonic(t *testing.T) {
	require.NoError(t, ValidateMnemonic(SplitMnemonic(testMnemonic)))
	require.Error(t, ValidateMnemonic(SplitMnemonic("alpha bravo")))

	words := SplitMnemonic(testMnemonic)
	words[3] = "d3lta"
	require.Error(t, ValidateMnemonic(words))
}

func TestKeyring_Derive(t *testing.T) {
	words := SplitMnemonic(testMnemonic)

	wallets, err := Keyring{}.Derive(words, 3)
	require.NoError(t, err)
	require.Len(t, wallets, 3)

	seen := make(map[string]bool)
	for _, wallet := range wallets {
		require.NoError(t, ValidatePairAddress(wallet.Address))
		require.Len(t, wallet.PrivateKey, 64)
		require.False(t, seen[wallet.Address])
		seen[wallet.Address] = true
	}

	again, err := Keyring{}.Derive(words, 3)
	require.NoError(t, err)
	require.Equal(t, wallets, again)

	main, err := Keyring{}.Connect(words)
	require.NoError(t, err)
	require.False(t, seen[main.Address])

	_, err = Keyring{}.Derive(words, 0)
	require.Error(t, err)
}

func TestClient_Transfer(t *testing.T) {
	wallets, err := Keyring{}.Derive(SplitMnemonic(testMnemonic), 1)
	require.NoError(t, err)
	from := wallets[0]
	to := testAddress('A', false)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transfers", r.URL.Path)

		var order transferOrder
		require.NoError(t, json.NewDecoder(r.Body).Decode(&order))
		require.Equal(t, from.Address, order.From)
		require.Equal(t, to, order.To)
		require.Equal(t, "2000000000", order.AmountNano)

		public, _ := hex.DecodeString(order.PublicKey)
		signature, _ := hex.DecodeString(order.Signature)
		require.True(t, ed25519.Verify(public, order.signingPayload(), signature))

		_ = json.NewEncoder(w).Encode(txResponse{TxHash: "abc123"})
	}))
	defer server.Close()

	client := NewClient(rest.New(server.URL))
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	hash, err := client.Transfer(context.Background(), core.TransferRequest{
		PrivateKey: from.PrivateKey,
		To:         to,
		Amount:     2,
	})
	require.NoError(t, err)
	require.Equal(t, "abc123", hash)
}

func TestClient_TransferFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient balance", http.StatusBadRequest)
	}))
	defer server.Close()

	wallets, err := Keyring{}.Derive(SplitMnemonic(testMnemonic), 1)
	require.NoError(t, err)

	_, err = NewClient(rest.New(server.URL)).Transfer(context.Background(), core.TransferRequest{
		PrivateKey: wallets[0].PrivateKey,
		To:         testAddress('A', false),
		Amount:     1,
	})
	require.True(t, core.IsExternal(err))

	_, err = NewClient(rest.New(server.URL)).Transfer(context.Background(), core.TransferRequest{
		PrivateKey: wallets[0].PrivateKey,
		To:         "bad",
		Amount:     1,
	})
	require.True(t, core.IsValidation(err))
}
