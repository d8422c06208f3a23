package exchange

import (
	"context"
	"net/http"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/rest"
	"github.com/raykavin/tonpairs/pkg/ton"
)

// DeDustAPI is the public DeDust API
const DeDustAPI = "https://api.dedust.io"

const nativeAsset = "native"

type deDustPlanRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type deDustStep struct {
	Pool struct {
		Address string `json:"address"`
	} `json:"pool"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
}

// DeDust trades a jetton against TON on DeDust
type DeDust struct {
	config
	client *rest.Client
}

// NewDeDust creates the DeDust adapter on top of an API client
func NewDeDust(client *rest.Client, options ...Option) *DeDust {
	return &DeDust{
		config: newConfig(options),
		client: client,
	}
}

func jetton(address string) string {
	return "jetton:" + address
}

// PlaceOrder plans the route of the swap and forwards the best one
func (d *DeDust) PlaceOrder(ctx context.Context, wallet, token string, amount float64, side core.SideType) (core.OrderResult, error) {
	if err := validateOrder(wallet, token, amount); err != nil {
		return core.OrderResult{}, err
	}

	request := deDustPlanRequest{From: nativeAsset, To: jetton(token), Amount: ton.ToNano(amount)}
	if side == core.SideTypeSell {
		request.From, request.To = jetton(token), nativeAsset
	}

	var routes [][]deDustStep
	if err := d.client.Do(ctx, http.MethodPost, "/v2/routing/plan", nil, request, &routes); err != nil {
		return core.OrderResult{}, core.NewExternalError(string(core.ExchangeDeDust), &OrderError{Err: err, Wallet: wallet, Token: token, Amount: amount})
	}
	if len(routes) == 0 || len(routes[0]) == 0 {
		return core.OrderResult{}, core.NewExternalError(string(core.ExchangeDeDust), &OrderError{Err: ErrNoRoute, Wallet: wallet, Token: token, Amount: amount})
	}

	route := routes[0]
	minAsk, err := d.minAsk(route[len(route)-1].AmountOut)
	if err != nil {
		return core.OrderResult{}, core.NewExternalError(string(core.ExchangeDeDust), err)
	}

	pools := make([]string, 0, len(route))
	for _, step := range route {
		pools = append(pools, step.Pool.Address)
	}

	result, err := d.execute(ctx, ton.SwapOrder{
		Exchange:     core.ExchangeDeDust,
		Wallet:       wallet,
		OfferAddress: request.From,
		AskAddress:   request.To,
		OfferUnits:   request.Amount,
		MinAskUnits:  minAsk,
		Route:        pools,
	})
	if err != nil {
		return core.OrderResult{}, core.NewExternalError(string(core.ExchangeDeDust), &OrderError{Err: err, Wallet: wallet, Token: token, Amount: amount})
	}

	return result, nil
}
