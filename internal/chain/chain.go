// Package chain holds the network-neutral types shared by the Solana and EVM
// backends: accounts, transfer requests and the result values returned instead
// of errors at the component boundary.
package chain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Account is a sender wallet: its public address and raw signing key.
type Account struct {
	Address string
	Key     []byte
}

// TransferRequest lives for a single submission attempt.
type TransferRequest struct {
	From   Account
	To     string
	Amount decimal.Decimal // human unit (SOL, ETH)
}

// BalanceResult is the spendable balance in human units.
// On failure Amount is zero and Err carries the cause.
type BalanceResult struct {
	Amount decimal.Decimal
	Err    error
}

// TransferResult reports whether the network accepted a transfer.
// ID is the transaction signature or hash when OK.
type TransferResult struct {
	OK  bool
	ID  string
	Err error
}

// Network is implemented by every backend.
type Network interface {
	Name() string
	Symbol() string
	Decimals() int32
	DecodeKey(secret string) (Account, error)
	ParseAddress(s string) (string, error)
	Balance(ctx context.Context, acc Account) BalanceResult
	Transfer(ctx context.Context, req TransferRequest) TransferResult
	Close() error
}
