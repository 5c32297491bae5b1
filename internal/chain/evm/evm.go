// Package evm is the EVM backend: native coin balances and plain value
// transfers signed as EIP-1559 transactions.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ligun0805/faucet-sender/internal/chain"
)

const (
	Decimals int32 = 18

	transferGas uint64 = 21_000
)

type Client struct {
	ec      *ethclient.Client
	limiter *chain.Limiter
	chainID *big.Int // nil until resolved from the node
	symbol  string
}

var _ chain.Network = (*Client)(nil)

// Dial connects with keep-alives and a request timeout. chainID 0 asks the node.
func Dial(rpcURL string, chainID int64, limiter *chain.Limiter) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	rc, err := rpc.DialHTTPWithClient(rpcURL, httpClient)
	if err != nil {
		return nil, err
	}
	c := &Client{ec: ethclient.NewClient(rc), limiter: limiter, symbol: "ETH"}
	if chainID > 0 {
		c.chainID = big.NewInt(chainID)
	}
	return c, nil
}

func (c *Client) Name() string    { return "evm" }
func (c *Client) Symbol() string  { return c.symbol }
func (c *Client) Decimals() int32 { return Decimals }

func (c *Client) Close() error {
	c.ec.Close()
	return nil
}

func hexToECDSA(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if h == "" {
		return nil, errors.New("empty private key")
	}
	return gethcrypto.HexToECDSA(h)
}

func (c *Client) DecodeKey(secret string) (chain.Account, error) {
	prv, err := hexToECDSA(secret)
	if err != nil {
		return chain.Account{}, err
	}
	return chain.Account{
		Address: gethcrypto.PubkeyToAddress(prv.PublicKey).Hex(),
		Key:     gethcrypto.FromECDSA(prv),
	}, nil
}

func (c *Client) ParseAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s).Hex(), nil
}

func (c *Client) Balance(ctx context.Context, acc chain.Account) chain.BalanceResult {
	zero := chain.FromBase(nil, Decimals)
	if !common.IsHexAddress(acc.Address) {
		return chain.BalanceResult{Amount: zero, Err: fmt.Errorf("address %q is not hex", acc.Address)}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return chain.BalanceResult{Amount: zero, Err: err}
	}
	wei, err := c.ec.BalanceAt(ctx, common.HexToAddress(acc.Address), nil)
	if err != nil {
		return chain.BalanceResult{Amount: zero, Err: fmt.Errorf("eth_getBalance: %w", err)}
	}
	return chain.BalanceResult{Amount: chain.FromBase(wei, Decimals)}
}

func (c *Client) resolveChainID(ctx context.Context) (*big.Int, error) {
	if c.chainID != nil {
		return c.chainID, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id, err := c.ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	c.chainID = id
	return id, nil
}

// Transfer sends Amount of the native coin with a pending-nonce, 21000 gas transaction.
func (c *Client) Transfer(ctx context.Context, req chain.TransferRequest) chain.TransferResult {
	fail := func(err error) chain.TransferResult { return chain.TransferResult{Err: err} }

	if len(req.From.Key) == 0 {
		return fail(errors.New("sender has no key"))
	}
	prv, err := gethcrypto.ToECDSA(req.From.Key)
	if err != nil {
		return fail(fmt.Errorf("sender key: %w", err))
	}
	from := gethcrypto.PubkeyToAddress(prv.PublicKey)
	if !common.IsHexAddress(req.To) {
		return fail(fmt.Errorf("recipient %q is not hex", req.To))
	}
	to := common.HexToAddress(req.To)
	value := chain.ToBase(req.Amount, Decimals)
	if value.Sign() <= 0 {
		return fail(fmt.Errorf("amount %s out of range", req.Amount))
	}

	chainID, err := c.resolveChainID(ctx)
	if err != nil {
		return fail(err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	nonce, err := c.ec.PendingNonceAt(ctx, from)
	if err != nil {
		return fail(fmt.Errorf("nonce: %w", err))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	gasPrice, err := c.ec.SuggestGasPrice(ctx)
	if err != nil {
		return fail(fmt.Errorf("gas price: %w", err))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	tip, err := c.ec.SuggestGasTipCap(ctx)
	if err != nil {
		return fail(fmt.Errorf("gas tip: %w", err))
	}
	feeCap := new(big.Int).Mul(gasPrice, big.NewInt(2))
	if tip.Cmp(feeCap) > 0 {
		tip = new(big.Int).Set(feeCap)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		Gas:       transferGas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		To:        &to,
		Value:     value,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), prv)
	if err != nil {
		return fail(fmt.Errorf("sign tx: %w", err))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	if err := c.ec.SendTransaction(ctx, signed); err != nil {
		return fail(fmt.Errorf("eth_sendRawTransaction: %w", err))
	}
	return chain.TransferResult{OK: true, ID: signed.Hash().Hex()}
}
