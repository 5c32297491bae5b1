package sol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/faucet-sender/internal/chain"
)

type fakeRPC struct {
	mu      sync.Mutex
	calls   []string
	results map[string]string // method -> raw JSON result
	fail    bool
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.calls = append(f.calls, req.Method)
	f.mu.Unlock()
	if f.fail {
		http.Error(w, "upstream down", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	res, ok := f.results[req.Method]
	if !ok {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":%s}`, req.ID)
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s,"id":%s}`, res, req.ID)
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk
}

func TestDecodeKeyBase58(t *testing.T) {
	pk := newKey(t)
	c := Dial("http://127.0.0.1:0", nil)

	acc, err := c.DecodeKey("  " + pk.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, pk.PublicKey().String(), acc.Address)
	assert.Equal(t, []byte(pk), acc.Key)
}

func TestDecodeKeyJSONArray(t *testing.T) {
	pk := newKey(t)
	raw, err := json.Marshal([]int(bytesToInts(pk)))
	require.NoError(t, err)

	acc, err := Dial("http://127.0.0.1:0", nil).DecodeKey(string(raw))
	require.NoError(t, err)
	assert.Equal(t, pk.PublicKey().String(), acc.Address)
}

func bytesToInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func TestDecodeKeyRejectsGarbage(t *testing.T) {
	c := Dial("http://127.0.0.1:0", nil)
	for _, s := range []string{"", "not-base58-0OIl", "3yZe7d", "[1,2,3]"} {
		_, err := c.DecodeKey(s)
		assert.Error(t, err, s)
	}
}

func TestParseAddress(t *testing.T) {
	c := Dial("http://127.0.0.1:0", nil)
	pub := newKey(t).PublicKey().String()

	got, err := c.ParseAddress(" " + pub + " ")
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	_, err = c.ParseAddress("0x6980437B8E74FC08856983F28AC637D5487ff173")
	assert.Error(t, err)
}

func TestBalance(t *testing.T) {
	rpcSrv := &fakeRPC{results: map[string]string{
		"getBalance": `{"context":{"slot":7},"value":20000000}`,
	}}
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	c := Dial(srv.URL, nil)
	acc := chain.Account{Address: newKey(t).PublicKey().String()}
	res := c.Balance(context.Background(), acc)
	require.NoError(t, res.Err)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("0.02")), res.Amount.String())
	assert.Equal(t, []string{"getBalance"}, rpcSrv.calls)
}

func TestBalanceFailureIsZero(t *testing.T) {
	srv := httptest.NewServer(&fakeRPC{fail: true})
	defer srv.Close()

	res := Dial(srv.URL, nil).Balance(context.Background(), chain.Account{Address: newKey(t).PublicKey().String()})
	assert.Error(t, res.Err)
	assert.True(t, res.Amount.IsZero())
}

func TestTransfer(t *testing.T) {
	sender := newKey(t)
	blockhash := newKey(t).PublicKey().String()
	sig, err := sender.Sign([]byte("fixture"))
	require.NoError(t, err)

	rpcSrv := &fakeRPC{results: map[string]string{
		"getLatestBlockhash": fmt.Sprintf(`{"context":{"slot":7},"value":{"blockhash":%q,"lastValidBlockHeight":100}}`, blockhash),
		"sendTransaction":    fmt.Sprintf("%q", sig.String()),
	}}
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	c := Dial(srv.URL, chain.NewLimiter(1000))
	res := c.Transfer(context.Background(), chain.TransferRequest{
		From:   chain.Account{Address: sender.PublicKey().String(), Key: sender},
		To:     newKey(t).PublicKey().String(),
		Amount: decimal.RequireFromString("0.001"),
	})
	require.NoError(t, res.Err)
	assert.True(t, res.OK)
	assert.Equal(t, sig.String(), res.ID)
	assert.Equal(t, []string{"getLatestBlockhash", "sendTransaction"}, rpcSrv.calls)
}

func TestTransferRejected(t *testing.T) {
	sender := newKey(t)
	rpcSrv := &fakeRPC{results: map[string]string{
		"getLatestBlockhash": fmt.Sprintf(`{"context":{"slot":7},"value":{"blockhash":%q,"lastValidBlockHeight":100}}`, newKey(t).PublicKey().String()),
	}}
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()

	res := Dial(srv.URL, nil).Transfer(context.Background(), chain.TransferRequest{
		From:   chain.Account{Address: sender.PublicKey().String(), Key: sender},
		To:     newKey(t).PublicKey().String(),
		Amount: decimal.RequireFromString("0.001"),
	})
	assert.False(t, res.OK)
	assert.Error(t, res.Err)
}

func TestTransferValidatesBeforeNetwork(t *testing.T) {
	rpcSrv := &fakeRPC{}
	srv := httptest.NewServer(rpcSrv)
	defer srv.Close()
	c := Dial(srv.URL, nil)
	sender := newKey(t)

	cases := map[string]chain.TransferRequest{
		"no key":     {From: chain.Account{Address: sender.PublicKey().String()}, To: newKey(t).PublicKey().String(), Amount: decimal.NewFromInt(1)},
		"bad to":     {From: chain.Account{Key: sender}, To: "nope", Amount: decimal.NewFromInt(1)},
		"dust":       {From: chain.Account{Key: sender}, To: newKey(t).PublicKey().String(), Amount: decimal.RequireFromString("0.0000000001")},
		"negative":   {From: chain.Account{Key: sender}, To: newKey(t).PublicKey().String(), Amount: decimal.NewFromInt(-1)},
		"short key":  {From: chain.Account{Key: []byte{1, 2, 3}}, To: newKey(t).PublicKey().String(), Amount: decimal.NewFromInt(1)},
	}
	for name, req := range cases {
		res := c.Transfer(context.Background(), req)
		assert.False(t, res.OK, name)
		assert.Error(t, res.Err, name)
	}
	assert.Empty(t, rpcSrv.calls)
}
