package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/rest"
	"github.com/raykavin/tonpairs/pkg/ton"
	"github.com/stretchr/testify/require"
)

var (
	token  = ton.EncodeAddress(0, [32]byte{'T'}, true)
	wallet = ton.EncodeAddress(0, [32]byte{'W'}, true)
)

type fakeExecutor struct {
	orders []ton.SwapOrder
	err    error
}

func (f *fakeExecutor) ExecuteSwap(_ context.Context, order ton.SwapOrder) (string, error) {
	f.orders = append(f.orders, order)
	if f.err != nil {
		return "", f.err
	}
	return "tx-1", nil
}

func newClient(url string) *rest.Client {
	return rest.New(url, rest.WithAttempts(1), rest.WithBackoff(time.Millisecond, time.Millisecond))
}

func TestStonFi_PlaceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/swap/simulate", r.URL.Path)
		query := r.URL.Query()
		require.Equal(t, ProxyTON, query.Get("offer_address"))
		require.Equal(t, token, query.Get("ask_address"))
		require.Equal(t, "2500000000", query.Get("units"))
		require.Equal(t, "0.01", query.Get("slippage_tolerance"))

		_ = json.NewEncoder(w).Encode(map[string]string{
			"router_address": "router",
			"ask_units":      "1000",
			"min_ask_units":  "990",
		})
	}))
	defer server.Close()

	executor := &fakeExecutor{}
	stonfi := NewStonFi(newClient(server.URL), WithExecutor(executor))

	result, err := stonfi.PlaceOrder(context.Background(), wallet, token, 2.5, core.SideTypeBuy)
	require.NoError(t, err)
	require.Equal(t, "tx-1", result.TransactionHash)

	require.Len(t, executor.orders, 1)
	order := executor.orders[0]
	require.Equal(t, core.ExchangeStonFi, order.Exchange)
	require.Equal(t, wallet, order.Wallet)
	require.Equal(t, "990", order.MinAskUnits)
	require.Equal(t, "router", order.Route)
}

func TestStonFi_SellWithoutExecutor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, token, r.URL.Query().Get("offer_address"))
		require.Equal(t, ProxyTON, r.URL.Query().Get("ask_address"))
		_ = json.NewEncoder(w).Encode(map[string]string{"ask_units": "1000"})
	}))
	defer server.Close()

	result, err := NewStonFi(newClient(server.URL)).PlaceOrder(context.Background(), wallet, token, 1, core.SideTypeSell)
	require.NoError(t, err)
	require.Equal(t, "N/A", result.TransactionRef())
}

func TestDeDust_PlaceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/routing/plan", r.URL.Path)

		var request deDustPlanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, "jetton:"+token, request.From)
		require.Equal(t, "native", request.To)
		require.Equal(t, "1000000000", request.Amount)

		_, _ = w.Write([]byte(`[[{"pool":{"address":"pool-1"},"amountIn":"1000000000","amountOut":"5000"},
			{"pool":{"address":"pool-2"},"amountIn":"5000","amountOut":"2000"}]]`))
	}))
	defer server.Close()

	executor := &fakeExecutor{}
	dedust := NewDeDust(newClient(server.URL), WithExecutor(executor), WithSlippage(0.5))

	result, err := dedust.PlaceOrder(context.Background(), wallet, token, 1, core.SideTypeSell)
	require.NoError(t, err)
	require.Equal(t, "tx-1", result.TransactionHash)

	order := executor.orders[0]
	require.Equal(t, "1000", order.MinAskUnits)
	require.Equal(t, []string{"pool-1", "pool-2"}, order.Route)
}

func TestDeDust_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	dedust := NewDeDust(newClient(server.URL))

	_, err := dedust.PlaceOrder(context.Background(), wallet, token, 1, core.SideTypeBuy)
	require.True(t, core.IsExternal(err))
	require.ErrorIs(t, err, ErrNoRoute)

	_, err = dedust.PlaceOrder(context.Background(), wallet, token, 0, core.SideTypeBuy)
	require.True(t, core.IsValidation(err))

	_, err = dedust.PlaceOrder(context.Background(), wallet, "not-a-token", 1, core.SideTypeBuy)
	require.True(t, core.IsValidation(err))
}

func TestExecutorFailureIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"min_ask_units": "1"})
	}))
	defer server.Close()

	executor := &fakeExecutor{err: errors.New("broadcast rejected")}
	_, err := NewStonFi(newClient(server.URL), WithExecutor(executor)).
		PlaceOrder(context.Background(), wallet, token, 1, core.SideTypeBuy)
	require.True(t, core.IsExternal(err))

	var orderErr *OrderError
	require.ErrorAs(t, err, &orderErr)
	require.Equal(t, wallet, orderErr.Wallet)
}

func TestExchanges_Get(t *testing.T) {
	exchanges := NewExchanges()
	dedust := NewDeDust(newClient("http://localhost"))
	exchanges.Register(core.ExchangeDeDust, dedust)

	got, err := exchanges.Get(core.ExchangeDeDust)
	require.NoError(t, err)
	require.Same(t, dedust, got)

	_, err = exchanges.Get(core.ExchangeStonFi)
	require.ErrorIs(t, err, core.ErrUnsupportedExchange)
}
