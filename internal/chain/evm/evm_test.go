package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/faucet-sender/internal/chain"
)

// well-known development key
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherAddr  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

type fakeNode struct {
	mu      sync.Mutex
	calls   []string
	results map[string]string
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.calls = append(f.calls, req.Method)
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	res, ok := f.results[req.Method]
	if !ok {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"rejected"}}`, req.ID)
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, res)
}

func dial(t *testing.T, node *fakeNode, chainID int64) *Client {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	c, err := Dial(srv.URL, chainID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDecodeKey(t *testing.T) {
	c := dial(t, &fakeNode{}, 1)
	acc, err := c.DecodeKey(devKey)
	require.NoError(t, err)
	assert.Equal(t, devAddress, acc.Address)
	assert.Len(t, acc.Key, 32)

	_, err = c.DecodeKey("0xzz")
	assert.Error(t, err)
	_, err = c.DecodeKey("")
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	c := dial(t, &fakeNode{}, 1)
	got, err := c.ParseAddress(" 0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266 ")
	require.NoError(t, err)
	assert.Equal(t, devAddress, got)

	_, err = c.ParseAddress("So11111111111111111111111111111111111111112")
	assert.Error(t, err)
}

func TestBalance(t *testing.T) {
	node := &fakeNode{results: map[string]string{"eth_getBalance": `"0xde0b6b3a7640000"`}}
	c := dial(t, node, 1)

	res := c.Balance(context.Background(), chain.Account{Address: devAddress})
	require.NoError(t, res.Err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(1)), res.Amount.String())
}

func TestBalanceErrorIsZero(t *testing.T) {
	c := dial(t, &fakeNode{}, 1)
	res := c.Balance(context.Background(), chain.Account{Address: devAddress})
	assert.Error(t, res.Err)
	assert.True(t, res.Amount.IsZero())
}

func TestTransfer(t *testing.T) {
	node := &fakeNode{results: map[string]string{
		"eth_chainId":              `"0x7a69"`,
		"eth_getTransactionCount":  `"0x3"`,
		"eth_gasPrice":             `"0x3b9aca00"`,
		"eth_maxPriorityFeePerGas": `"0x1"`,
		"eth_sendRawTransaction":   `"0x00"`,
	}}
	c := dial(t, node, 0)
	acc, err := c.DecodeKey(devKey)
	require.NoError(t, err)

	res := c.Transfer(context.Background(), chain.TransferRequest{
		From:   acc,
		To:     otherAddr,
		Amount: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, res.Err)
	assert.True(t, res.OK)
	assert.Len(t, res.ID, 66)
	assert.Equal(t, []string{
		"eth_chainId", "eth_getTransactionCount", "eth_gasPrice",
		"eth_maxPriorityFeePerGas", "eth_sendRawTransaction",
	}, node.calls)
}

func TestTransferRejectedByNode(t *testing.T) {
	node := &fakeNode{results: map[string]string{
		"eth_getTransactionCount":  `"0x0"`,
		"eth_gasPrice":             `"0x1"`,
		"eth_maxPriorityFeePerGas": `"0x1"`,
	}}
	c := dial(t, node, 31337)
	acc, err := c.DecodeKey(devKey)
	require.NoError(t, err)

	res := c.Transfer(context.Background(), chain.TransferRequest{From: acc, To: otherAddr, Amount: decimal.NewFromInt(1)})
	assert.False(t, res.OK)
	assert.ErrorContains(t, res.Err, "rejected")
}

func TestTransferValidatesInput(t *testing.T) {
	node := &fakeNode{}
	c := dial(t, node, 1)
	acc, err := c.DecodeKey(devKey)
	require.NoError(t, err)

	for name, req := range map[string]chain.TransferRequest{
		"no key": {To: otherAddr, Amount: decimal.NewFromInt(1)},
		"bad to": {From: acc, To: "nope", Amount: decimal.NewFromInt(1)},
		"zero":   {From: acc, To: otherAddr, Amount: decimal.Zero},
	} {
		res := c.Transfer(context.Background(), req)
		assert.False(t, res.OK, name)
		assert.Error(t, res.Err, name)
	}
	assert.Empty(t, node.calls)
}
