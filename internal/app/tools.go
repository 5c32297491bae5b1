package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"

	"github.com/ligun0805/faucet-sender/internal/captcha"
	"github.com/ligun0805/faucet-sender/internal/config"
	"github.com/ligun0805/faucet-sender/internal/faucet"
	"github.com/ligun0805/faucet-sender/internal/proxy"
)

const proxyCheckTimeout = 15 * time.Second

// CaptchaBalance prints the 2captcha account balance.
func (a *App) CaptchaBalance(ctx context.Context) error {
	s, err := a.begin("captcha-balance")
	if err != nil {
		return err
	}
	defer s.Close()

	if s.st.CaptchaAPIKey == "" {
		return fmt.Errorf("%w: captcha_api_key is empty", config.ErrInvalid)
	}
	bal, err := captcha.New(s.st.CaptchaAPIKey, s.log).Balance(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("captcha balance")
		return err
	}
	s.log.Info().Str("balance", bal.String()).Msg("captcha balance")
	a.printf("2captcha balance: $%s\n", bal.StringFixed(4))
	return nil
}

func (a *App) loadProxies(s *session) ([]proxy.Proxy, error) {
	if s.st.ProxyFile == "" {
		return nil, nil
	}
	list, bad, err := proxy.Load(s.st.ProxyFile)
	if err != nil {
		return nil, err
	}
	for _, n := range bad {
		s.log.Warn().Int("line", n).Msg("skipping malformed proxy")
	}
	return list, nil
}

// CheckProxies probes every proxy from the proxy file.
func (a *App) CheckProxies(ctx context.Context) error {
	s, err := a.begin("proxies")
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := a.loadProxies(s)
	if err != nil {
		return fmt.Errorf("%w: proxy file: %v", config.ErrInvalid, err)
	}
	if len(list) == 0 {
		a.printf("No proxies configured.\n")
		return nil
	}
	var results []proxy.CheckResult
	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := proxy.Check(ctx, p, s.st.ProxyCheckURL, proxyCheckTimeout)
		results = append(results, r)
		if r.OK {
			s.log.Info().Str("proxy", p.String()).Str("ip", r.IP).Dur("latency", r.Latency).Msg("proxy alive")
			a.printf("  alive  %s  ip=%s  %s\n", p, r.IP, r.Latency.Round(time.Millisecond))
		} else {
			s.log.Warn().Str("proxy", p.String()).Err(r.Err).Msg("proxy dead")
			a.printf("  dead   %s  %v\n", p, r.Err)
		}
	}
	alive := lo.CountBy(results, func(r proxy.CheckResult) bool { return r.OK })
	a.printf("%d of %d proxies alive\n", alive, len(results))
	return nil
}

// CollectFaucet claims the faucet for every sender address.
func (a *App) CollectFaucet(ctx context.Context) error {
	s, err := a.begin("faucet")
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.st.ValidateFaucet(); err != nil {
		s.log.Error().Err(err).Msg("configuration rejected")
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
	proxies, err := a.loadProxies(s)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Str("file", s.st.ProxyFile).Msg("proxy file not found, connecting directly")
	} else if err != nil {
		return fmt.Errorf("%w: proxy file: %v", config.ErrInvalid, err)
	}

	opts := faucet.DefaultOptions(s.st.FaucetURL)
	opts.SiteKey = s.st.CaptchaSiteKey
	collector := faucet.NewCollector(opts, captcha.New(s.st.CaptchaAPIKey, s.log), proxies, s.log)
	results := collector.ClaimAll(ctx, accs)

	for _, r := range results {
		if r.OK {
			a.printf("  claimed  %s\n", r.Address)
		} else {
			a.printf("  failed   %s  %v\n", r.Address, r.Err)
		}
	}
	a.printf("%d of %d claims submitted\n", lo.CountBy(results, func(r faucet.Result) bool { return r.OK }), len(accs))
	return ctx.Err()
}
