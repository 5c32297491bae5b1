// Package app implements the operator actions shared by the console menu,
// the subcommands and the desktop window. Every action loads the
// configuration fresh, so edits to config files apply on the next run.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ligun0805/faucet-sender/internal/chain"
	"github.com/ligun0805/faucet-sender/internal/chain/evm"
	"github.com/ligun0805/faucet-sender/internal/chain/sol"
	"github.com/ligun0805/faucet-sender/internal/config"
	"github.com/ligun0805/faucet-sender/internal/logging"
)

type App struct {
	ConfigPath string
	Console    io.Writer // log sink next to the log file
	Out        io.Writer // action reports
	NoColor    bool

	// PromptSecret asks for a sender key when none is configured. Nil disables prompting.
	PromptSecret func(prompt string) (string, error)

	openNetwork func(st config.Settings) (chain.Network, error)
}

func New(configPath string, console, out io.Writer) *App {
	return &App{ConfigPath: configPath, Console: console, Out: out, openNetwork: OpenNetwork}
}

// Action is one menu entry.
type Action struct {
	Key   string
	Title string
	Run   func(ctx context.Context) error
}

func (a *App) Actions() []Action {
	return []Action{
		{Key: "faucet", Title: "Collect faucet drops", Run: a.CollectFaucet},
		{Key: "captcha-balance", Title: "Check 2captcha balance", Run: a.CaptchaBalance},
		{Key: "proxies", Title: "Check proxies", Run: a.CheckProxies},
		{Key: "senders", Title: "Check sender keys and balances", Run: a.CheckSenders},
		{Key: "recipients", Title: "Check recipient addresses", Run: a.CheckRecipients},
		{Key: "send", Title: "Send transactions", Run: a.Send},
	}
}

// OpenNetwork builds the chain backend named by st.Network.
func OpenNetwork(st config.Settings) (chain.Network, error) {
	limiter := chain.NewLimiter(st.RPCRateLimit)
	switch st.Network {
	case config.NetworkSolana:
		return sol.Dial(st.RPCURL, limiter), nil
	case config.NetworkEVM:
		return evm.Dial(st.RPCURL, st.ChainID, limiter)
	default:
		return nil, fmt.Errorf("%w: network %q is not supported", config.ErrInvalid, st.Network)
	}
}

// session is the per-action state: fresh settings and a logger tied to the log file.
type session struct {
	st     config.Settings
	log    zerolog.Logger
	closer io.Closer
}

func (s *session) Close() { _ = s.closer.Close() }

func (a *App) begin(action string) (*session, error) {
	st, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	console := a.Console
	if console == nil {
		console = io.Discard
	}
	log, closer, err := logging.New(console, st.LogFile, a.NoColor)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", st.LogFile, err)
	}
	log = log.With().Str("action", action).Logger()
	log.Debug().
		Str("network", st.Network).
		Str("rpc_url", st.RPCURL).
		Strs("sender_keys", lo.Map(st.SenderKeys, func(k string, _ int) string { return config.MaskSecret(k) })).
		Str("senders_file", st.SendersFile).
		Str("telegram_token", config.MaskSecret(st.TelegramToken)).
		Str("captcha_api_key", config.MaskSecret(st.CaptchaAPIKey)).
		Msg("settings loaded")
	return &session{st: st, log: log, closer: closer}, nil
}

func (a *App) network(st config.Settings) (chain.Network, error) {
	open := a.openNetwork
	if open == nil {
		open = OpenNetwork
	}
	return open(st)
}

func (a *App) printf(format string, args ...any) {
	if a.Out == nil {
		return
	}
	fmt.Fprintf(a.Out, format, args...)
}
