package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ligun0805/faucet-sender/internal/chain"
	"github.com/ligun0805/faucet-sender/internal/config"
	"github.com/ligun0805/faucet-sender/internal/dispatch"
	"github.com/ligun0805/faucet-sender/internal/loader"
	"github.com/ligun0805/faucet-sender/internal/notify"
)

// promptForKey fills st.SenderKeys from PromptSecret when no sender source is configured.
func (a *App) promptForKey(st *config.Settings) error {
	if len(st.SenderKeys) > 0 || st.SendersFile != "" || a.PromptSecret == nil {
		return nil
	}
	k, err := a.PromptSecret("Sender secret key: ")
	if err != nil {
		return err
	}
	if k != "" {
		st.SenderKeys = []string{k}
	}
	return nil
}

func (a *App) senders(s *session, net chain.Network) ([]chain.Account, error) {
	accs, err := loader.Senders(s.st.SenderKeys, s.st.SendersFile, s.st.SendersColumn, net, s.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if len(accs) == 0 {
		return nil, dispatch.ErrNoSenders
	}
	s.log.Info().Int("senders", len(accs)).Msg("sender keys decoded")
	return accs, nil
}

func (a *App) recipients(s *session, net chain.Network) ([]string, error) {
	rs, err := loader.ReadRecipients(s.st.RecipientsFile, net)
	if err != nil {
		return nil, fmt.Errorf("%w: recipients file: %v", config.ErrInvalid, err)
	}
	for _, bad := range rs.Invalid {
		s.log.Warn().Int("line", bad.Line).Str("text", bad.Text).Err(bad.Err).Msg("skipping invalid recipient")
	}
	if len(rs.Valid) == 0 {
		return nil, fmt.Errorf("%w: %s has no valid addresses", dispatch.ErrNoRecipients, s.st.RecipientsFile)
	}
	s.log.Info().Int("recipients", len(rs.Valid)).Int("invalid", len(rs.Invalid)).Msg("recipients loaded")
	return rs.Valid, nil
}

// Send runs the dispatch loop. Configuration problems, an empty recipient list
// and undecodable senders abort before any network call.
func (a *App) Send(ctx context.Context) error {
	s, err := a.begin("send")
	if err != nil {
		return err
	}
	defer s.Close()

	if err := a.promptForKey(&s.st); err != nil {
		return err
	}
	if err := s.st.ValidateDispatch(); err != nil {
		s.log.Error().Err(err).Msg("configuration rejected")
		return err
	}
	net, err := a.network(s.st)
	if err != nil {
		return err
	}
	defer net.Close()

	recipients, err := a.recipients(s, net)
	if err != nil {
		s.log.Error().Err(err).Msg("cannot start")
		return err
	}
	senders, err := a.senders(s, net)
	if err != nil {
		s.log.Error().Err(err).Msg("cannot start")
		return err
	}

	cfg := dispatch.Config{
		Target:                 s.st.TransactionCount,
		MinAmount:              s.st.MinAmount,
		MaxAmount:              s.st.MaxAmount,
		MinDelay:               time.Duration(s.st.MinDelay) * time.Second,
		MaxDelay:               time.Duration(s.st.MaxDelay) * time.Second,
		MaxConsecutiveFailures: s.st.MaxConsecutiveFailures,
		Precision:              net.Decimals(),
		Symbol:                 net.Symbol(),
		ExplorerTxURL:          s.st.ExplorerTxURL,
	}
	notifier := notify.New(s.st.TelegramToken, s.st.TelegramChatID, s.log)
	out, runErr := dispatch.New(cfg, net, notifier, s.log).Run(ctx, senders, recipients)

	a.printf("Run %s on %s\n", out.RunID, net.Name())
	addrs := make([]string, 0, len(out.Sent))
	for addr := range out.Sent {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		status := "active"
		if reason, ok := out.Retired[addr]; ok {
			status = "retired: " + reason
		}
		a.printf("  %s  sent %d/%d  (%s)\n", addr, out.Sent[addr], cfg.Target, status)
	}
	a.printf("Total transfers: %d\n", out.Total())

	if errors.Is(runErr, context.Canceled) {
		a.printf("Interrupted.\n")
	}
	return runErr
}

// CheckSenders decodes every configured key and prints its address and balance.
func (a *App) CheckSenders(ctx context.Context) error {
	s, err := a.begin("senders")
	if err != nil {
		return err
	}
	defer s.Close()

	if err := a.promptForKey(&s.st); err != nil {
		return err
	}
	net, err := a.network(s.st)
	if err != nil {
		return err
	}
	defer net.Close()

	accs, err := a.senders(s, net)
	if err != nil {
		return err
	}
	floor := s.st.MinAmount
	funded := 0
	for i, acc := range accs {
		if err := ctx.Err(); err != nil {
			return err
		}
		bal := net.Balance(ctx, acc)
		mark := "ok"
		switch {
		case bal.Err != nil:
			mark = "error: " + bal.Err.Error()
		case bal.Amount.LessThan(floor):
			mark = "below min_amount"
		default:
			funded++
		}
		a.printf("%3d. %s  %s  %s\n", i+1, acc.Address, chain.FormatAmount(bal.Amount, net.Symbol()), mark)
	}
	a.printf("%d of %d senders can send at least %s\n", funded, len(accs), chain.FormatAmount(floor, net.Symbol()))
	return nil
}

// CheckRecipients reports valid and invalid lines of the recipients file.
func (a *App) CheckRecipients(ctx context.Context) error {
	s, err := a.begin("recipients")
	if err != nil {
		return err
	}
	defer s.Close()

	net, err := a.network(s.st)
	if err != nil {
		return err
	}
	defer net.Close()

	rs, err := loader.ReadRecipients(s.st.RecipientsFile, net)
	if err != nil {
		return fmt.Errorf("%w: recipients file: %v", config.ErrInvalid, err)
	}
	a.printf("%s: %d valid, %d invalid\n", s.st.RecipientsFile, len(rs.Valid), len(rs.Invalid))
	for _, bad := range rs.Invalid {
		a.printf("  line %d: %q (%v)\n", bad.Line, bad.Text, bad.Err)
	}
	if len(rs.Valid) == 0 {
		return fmt.Errorf("%w: %s has no valid addresses", dispatch.ErrNoRecipients, s.st.RecipientsFile)
	}
	return nil
}
