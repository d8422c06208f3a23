package exchange

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/rest"
	"github.com/raykavin/tonpairs/pkg/ton"
)

const (
	// StonFiAPI is the public STON.fi API
	StonFiAPI = "https://api.ston.fi"

	// ProxyTON is the pTON jetton STON.fi pools use for native TON
	ProxyTON = "EQCM3B12QK1e4yZSf8GtBRT0aLMNyEsBc_DhVfRRtOEffLez"
)

type stonFiSimulation struct {
	OfferAddress  string `json:"offer_address"`
	AskAddress    string `json:"ask_address"`
	RouterAddress string `json:"router_address"`
	OfferUnits    string `json:"offer_units"`
	AskUnits      string `json:"ask_units"`
	MinAskUnits   string `json:"min_ask_units"`
}

// StonFi trades a jetton against TON on STON.fi
type StonFi struct {
	config
	client *rest.Client
}

// NewStonFi creates the STON.fi adapter on top of an API client
func NewStonFi(client *rest.Client, options ...Option) *StonFi {
	return &StonFi{
		config: newConfig(options),
		client: client,
	}
}

// PlaceOrder buys the token with TON or sells it for TON
func (s *StonFi) PlaceOrder(ctx context.Context, wallet, token string, amount float64, side core.SideType) (core.OrderResult, error) {
	if err := validateOrder(wallet, token, amount); err != nil {
		return core.OrderResult{}, err
	}

	offer, ask := ProxyTON, token
	if side == core.SideTypeSell {
		offer, ask = token, ProxyTON
	}

	query := url.Values{
		"offer_address":      {offer},
		"ask_address":        {ask},
		"units":              {ton.ToNano(amount)},
		"slippage_tolerance": {strconv.FormatFloat(s.slippage, 'f', -1, 64)},
	}

	var simulation stonFiSimulation
	if err := s.client.Do(ctx, http.MethodPost, "/v1/swap/simulate", query, nil, &simulation); err != nil {
		return core.OrderResult{}, core.NewExternalError(string(core.ExchangeStonFi), &OrderError{Err: err, Wallet: wallet, Token: token, Amount: amount})
	}

	minAsk := simulation.MinAskUnits
	if minAsk == "" {
		var err error
		if minAsk, err = s.minAsk(simulation.AskUnits); err != nil {
			return core.OrderResult{}, core.NewExternalError(string(core.ExchangeStonFi), err)
		}
	}

	result, err := s.execute(ctx, ton.SwapOrder{
		Exchange:     core.ExchangeStonFi,
		Wallet:       wallet,
		OfferAddress: offer,
		AskAddress:   ask,
		OfferUnits:   query.Get("units"),
		MinAskUnits:  minAsk,
		Route:        simulation.RouterAddress,
	})
	if err != nil {
		return core.OrderResult{}, core.NewExternalError(string(core.ExchangeStonFi), &OrderError{Err: err, Wallet: wallet, Token: token, Amount: amount})
	}

	return result, nil
}
