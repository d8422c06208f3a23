package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/rest"
)

const serviceName = "wallet service"

// SwapOrder is a quoted DEX swap handed to the wallet service for signing
// and broadcast
type SwapOrder struct {
	Exchange     core.ExchangeName `json:"exchange"`
	Wallet       string            `json:"wallet"`
	OfferAddress string            `json:"offer_address"`
	AskAddress   string            `json:"ask_address"`
	OfferUnits   string            `json:"offer_units"`
	MinAskUnits  string            `json:"min_ask_units"`
	Route        any               `json:"route,omitempty"`
}

type transferOrder struct {
	From       string `json:"from"`
	To         string `json:"to"`
	AmountNano string `json:"amount_nano"`
	Comment    string `json:"comment,omitempty"`
	ValidUntil int64  `json:"valid_until"`
	PublicKey  string `json:"public_key"`
	Signature  string `json:"signature"`
}

type txResponse struct {
	TxHash string `json:"tx_hash"`
}

// Client implements core.WalletService. Keys are derived locally; transfers
// are signed locally and broadcast through the wallet service, so private
// keys never leave the process.
type Client struct {
	Keyring
	rest *rest.Client
	ttl  time.Duration
	now  func() time.Time
}

// NewClient creates a wallet service client
func NewClient(client *rest.Client) *Client {
	return &Client{
		rest: client,
		ttl:  time.Minute,
		now:  time.Now,
	}
}

// Transfer signs and broadcasts a TON transfer, returning its hash
func (c *Client) Transfer(ctx context.Context, request core.TransferRequest) (string, error) {
	if err := ValidateAddress(request.To); err != nil {
		return "", err
	}
	if request.Amount <= 0 {
		return "", core.NewValidationError("amount", "must be positive")
	}

	key, err := PrivateKeyFromHex(request.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("invalid signing key: %w", err)
	}

	order := transferOrder{
		From:       walletFromSeed(key.Seed()).Address,
		To:         request.To,
		AmountNano: ToNano(request.Amount),
		Comment:    request.Comment,
		ValidUntil: c.now().Add(c.ttl).Unix(),
		PublicKey:  hex.EncodeToString(key.Public().(ed25519.PublicKey)),
	}
	order.Signature = hex.EncodeToString(ed25519.Sign(key, order.signingPayload()))

	var resp txResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v1/transfers", nil, order, &resp); err != nil {
		return "", core.NewExternalError(serviceName, err)
	}

	return resp.TxHash, nil
}

// ExecuteSwap forwards a quoted swap for signing and broadcast
func (c *Client) ExecuteSwap(ctx context.Context, order SwapOrder) (string, error) {
	var resp txResponse
	if err := c.rest.Do(ctx, http.MethodPost, "/v1/swaps", nil, order, &resp); err != nil {
		return "", core.NewExternalError(serviceName, err)
	}
	return resp.TxHash, nil
}

func (o transferOrder) signingPayload() []byte {
	return []byte(o.From + "\n" + o.To + "\n" + o.AmountNano + "\n" + o.Comment + "\n" + strconv.FormatInt(o.ValidUntil, 10))
}
