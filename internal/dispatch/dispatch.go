// Package dispatch runs the balance-gated, paced fan-out of native transfers
// from a set of sender accounts to randomly chosen recipients.
//
// The loop is single threaded: at most one network call or pacing timer is
// pending at any time. A sender leaves the active set when its balance drops
// below the minimum transfer amount (or, when configured, after too many
// consecutive failed submissions) and is never picked again in that run.
package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ligun0805/faucet-sender/internal/chain"
)

var (
	ErrNoRecipients = errors.New("recipient list is empty")
	ErrNoSenders    = errors.New("no usable sender keys")
)

// Wallet is the chain backend the loop drives.
type Wallet interface {
	Balance(ctx context.Context, acc chain.Account) chain.BalanceResult
	Transfer(ctx context.Context, req chain.TransferRequest) chain.TransferResult
}

// Notifier delivers best-effort progress messages; delivery errors stay inside it.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type Config struct {
	Target                 int // confirmed transfers per sender
	MinAmount, MaxAmount   decimal.Decimal
	MinDelay, MaxDelay     time.Duration
	MaxConsecutiveFailures int   // 0 disables the cap
	Precision              int32 // decimals kept when drawing amounts
	Symbol                 string
	ExplorerTxURL          string
}

// Retirement reasons reported in Outcome.Retired.
const (
	ReasonUnderfunded = "insufficient balance"
	ReasonFailures    = "too many failed transfers"
)

type Outcome struct {
	RunID   uuid.UUID
	Sent    map[string]int    // sender address -> confirmed transfers
	Retired map[string]string // sender address -> reason
}

// Total returns the number of confirmed transfers across all senders.
func (o Outcome) Total() int {
	return lo.Sum(lo.Values(o.Sent))
}

type Dispatcher struct {
	cfg    Config
	wallet Wallet
	notify Notifier
	log    zerolog.Logger
	rnd    *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Dispatcher)

// WithRand fixes the source used for sender, recipient, amount and delay draws.
func WithRand(r *rand.Rand) Option {
	return func(d *Dispatcher) { d.rnd = r }
}

// WithSleep replaces the pacing wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

func New(cfg Config, wallet Wallet, notifier Notifier, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		wallet: wallet,
		notify: notifier,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(d)
	}
	if d.notify == nil {
		d.notify = nopNotifier{}
	}
	return d
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run dispatches until every active sender reached the target, no sender is
// left, or ctx is cancelled. The returned error is ErrNoRecipients/ErrNoSenders
// for unusable input and ctx.Err() after cancellation; the outcome is valid in
// both the success and the cancellation case.
func (d *Dispatcher) Run(ctx context.Context, senders []chain.Account, recipients []string) (Outcome, error) {
	out := Outcome{RunID: uuid.New(), Sent: map[string]int{}, Retired: map[string]string{}}
	if len(recipients) == 0 {
		return out, ErrNoRecipients
	}
	active := lo.UniqBy(senders, func(a chain.Account) string { return a.Address })
	if len(active) == 0 {
		return out, ErrNoSenders
	}
	for _, s := range active {
		out.Sent[s.Address] = 0
	}

	log := d.log.With().Str("run", out.RunID.String()).Logger()
	log.Info().
		Int("senders", len(active)).
		Int("recipients", len(recipients)).
		Int("target", d.cfg.Target).
		Msg("dispatch started")

	if d.cfg.Target <= 0 {
		log.Info().Msg("target is zero, nothing to send")
		return out, nil
	}

	failures := map[string]int{}
	retire := func(idx int, reason string) {
		s := active[idx]
		active = slices.Delete(active, idx, idx+1)
		out.Retired[s.Address] = reason
		log.Warn().Str("sender", s.Address).Str("reason", reason).Int("remaining", len(active)).Msg("sender retired")
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if len(active) == 0 {
			log.Warn().Msg("no active senders left")
			break
		}
		if lo.EveryBy(active, func(a chain.Account) bool { return out.Sent[a.Address] >= d.cfg.Target }) {
			break
		}

		idx := d.rnd.Intn(len(active))
		sender := active[idx]
		if out.Sent[sender.Address] >= d.cfg.Target {
			continue
		}

		bal := d.wallet.Balance(ctx, sender)
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if bal.Err != nil {
			log.Error().Err(bal.Err).Str("sender", sender.Address).Msg("balance query failed")
		}
		if bal.Amount.LessThan(d.cfg.MinAmount) {
			retire(idx, ReasonUnderfunded)
			d.notify.Notify(ctx, underfundedMessage(sender.Address, bal.Amount, d.cfg.Symbol))
			continue
		}

		to := recipients[d.rnd.Intn(len(recipients))]
		amount := d.drawAmount()
		res := d.wallet.Transfer(ctx, chain.TransferRequest{From: sender, To: to, Amount: amount})
		if res.OK {
			out.Sent[sender.Address]++
			failures[sender.Address] = 0
			log.Info().
				Str("sender", sender.Address).
				Str("to", to).
				Str("amount", chain.FormatAmount(amount, d.cfg.Symbol)).
				Str("tx", res.ID).
				Int("sent", out.Sent[sender.Address]).
				Msg("transfer sent")
			d.notify.Notify(ctx, sentMessage(sender.Address, to, amount, d.cfg.Symbol, res.ID, d.cfg.ExplorerTxURL, out.Sent[sender.Address], d.cfg.Target))
		} else {
			failures[sender.Address]++
			log.Error().Err(res.Err).
				Str("sender", sender.Address).
				Str("to", to).
				Int("consecutive_failures", failures[sender.Address]).
				Msg("transfer failed")
			if d.cfg.MaxConsecutiveFailures > 0 && failures[sender.Address] >= d.cfg.MaxConsecutiveFailures {
				retire(idx, ReasonFailures)
				d.notify.Notify(ctx, failuresMessage(sender.Address, failures[sender.Address]))
			}
		}

		if len(active) == 0 {
			continue
		}
		wait := d.drawDelay()
		log.Info().Dur("wait", wait).Msg("waiting before next transfer")
		if err := d.sleep(ctx, wait); err != nil {
			runErr = err
			break
		}
	}

	// the tally goes out even after an interrupt
	summaryCtx := context.WithoutCancel(ctx)
	for _, s := range active {
		d.notify.Notify(summaryCtx, summaryMessage(s.Address, out.Sent[s.Address]))
	}
	log.Info().
		Int("total", out.Total()).
		Int("retired", len(out.Retired)).
		Bool("interrupted", runErr != nil).
		Msg("dispatch finished")
	return out, runErr
}

// drawAmount picks uniformly from [MinAmount, MaxAmount), truncated to Precision.
func (d *Dispatcher) drawAmount() decimal.Decimal {
	low, high := d.cfg.MinAmount, d.cfg.MaxAmount
	if !high.GreaterThan(low) {
		return low
	}
	amt := low.Add(high.Sub(low).Mul(decimal.NewFromFloat(d.rnd.Float64())))
	if d.cfg.Precision > 0 {
		amt = amt.Truncate(d.cfg.Precision)
	}
	if amt.LessThan(low) {
		return low
	}
	return amt
}

// drawDelay picks a whole number of seconds in [MinDelay, MaxDelay] inclusive.
func (d *Dispatcher) drawDelay() time.Duration {
	minS := int64(d.cfg.MinDelay / time.Second)
	maxS := int64(d.cfg.MaxDelay / time.Second)
	if maxS <= minS {
		return time.Duration(minS) * time.Second
	}
	return time.Duration(minS+d.rnd.Int63n(maxS-minS+1)) * time.Second
}
