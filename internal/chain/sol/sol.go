// Package sol is the Solana backend: balances via getBalance and native SOL
// transfers built with the system program.
package sol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ligun0805/faucet-sender/internal/chain"
)

const Decimals int32 = 9

type Client struct {
	rpc        *rpc.Client
	limiter    *chain.Limiter
	commitment rpc.CommitmentType
}

var _ chain.Network = (*Client)(nil)

// Dial does not touch the network; the first RPC call does.
func Dial(endpoint string, limiter *chain.Limiter) *Client {
	return &Client{
		rpc:        rpc.New(endpoint),
		limiter:    limiter,
		commitment: rpc.CommitmentConfirmed,
	}
}

func (c *Client) Name() string    { return "solana" }
func (c *Client) Symbol() string  { return "SOL" }
func (c *Client) Decimals() int32 { return Decimals }
func (c *Client) Close() error    { return c.rpc.Close() }

// DecodeKey accepts a base58 secret key or a solana-keygen style JSON byte array.
func (c *Client) DecodeKey(secret string) (chain.Account, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return chain.Account{}, errors.New("empty secret key")
	}
	var pk solana.PrivateKey
	if strings.HasPrefix(secret, "[") {
		var raw []byte
		if err := json.Unmarshal([]byte(secret), &raw); err != nil {
			return chain.Account{}, fmt.Errorf("keypair array: %w", err)
		}
		if _, err := solana.ValidatePrivateKey(raw); err != nil {
			return chain.Account{}, err
		}
		pk = solana.PrivateKey(raw)
	} else {
		var err error
		pk, err = solana.PrivateKeyFromBase58(secret)
		if err != nil {
			return chain.Account{}, fmt.Errorf("base58 secret: %w", err)
		}
	}
	return chain.Account{Address: pk.PublicKey().String(), Key: []byte(pk)}, nil
}

func (c *Client) ParseAddress(s string) (string, error) {
	pub, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return pub.String(), nil
}

// Balance never fails outward: errors come back as a zero balance with Err set.
func (c *Client) Balance(ctx context.Context, acc chain.Account) chain.BalanceResult {
	pub, err := solana.PublicKeyFromBase58(acc.Address)
	if err != nil {
		return chain.BalanceResult{Amount: chain.FromBase(nil, Decimals), Err: fmt.Errorf("address: %w", err)}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return chain.BalanceResult{Amount: chain.FromBase(nil, Decimals), Err: err}
	}
	out, err := c.rpc.GetBalance(ctx, pub, c.commitment)
	if err != nil {
		return chain.BalanceResult{Amount: chain.FromBase(nil, Decimals), Err: fmt.Errorf("getBalance: %w", err)}
	}
	if out == nil {
		return chain.BalanceResult{Amount: chain.FromBase(nil, Decimals), Err: errors.New("getBalance: empty result")}
	}
	return chain.BalanceResult{Amount: chain.FromBase(new(big.Int).SetUint64(out.Value), Decimals)}
}

// Transfer builds a single system transfer against a fresh blockhash, signs it and submits it once.
func (c *Client) Transfer(ctx context.Context, req chain.TransferRequest) chain.TransferResult {
	fail := func(err error) chain.TransferResult { return chain.TransferResult{Err: err} }

	if len(req.From.Key) == 0 {
		return fail(errors.New("sender has no key"))
	}
	signer := solana.PrivateKey(req.From.Key)
	if err := signer.Validate(); err != nil {
		return fail(fmt.Errorf("sender key: %w", err))
	}
	from := signer.PublicKey()
	to, err := solana.PublicKeyFromBase58(req.To)
	if err != nil {
		return fail(fmt.Errorf("recipient: %w", err))
	}
	lamports := chain.ToBase(req.Amount, Decimals)
	if lamports.Sign() <= 0 || !lamports.IsUint64() {
		return fail(fmt.Errorf("amount %s out of range", req.Amount))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	recent, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return fail(fmt.Errorf("getLatestBlockhash: %w", err))
	}
	if recent == nil || recent.Value == nil {
		return fail(errors.New("getLatestBlockhash: empty result"))
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports.Uint64(), from, to).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return fail(fmt.Errorf("build tx: %w", err))
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &signer
		}
		return nil
	}); err != nil {
		return fail(fmt.Errorf("sign tx: %w", err))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return fail(fmt.Errorf("sendTransaction: %w", err))
	}
	return chain.TransferResult{OK: true, ID: sig.String()}
}
