// Package faucet claims faucet drops through a headless Chrome session: it
// fills the wallet form, solves the page's reCAPTCHA through a Solver and
// confirms the claim.
package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/ligun0805/faucet-sender/internal/chain"
	"github.com/ligun0805/faucet-sender/internal/proxy"
)

type Solver interface {
	SolveRecaptchaV2(ctx context.Context, siteKey, pageURL string) (string, error)
}

// Selectors locate the faucet form elements (CSS).
type Selectors struct {
	Address  string
	Collect  string
	Captcha  string // element carrying data-sitekey
	Response string // reCAPTCHA response textarea
	Confirm  string
}

var DefaultSelectors = Selectors{
	Address:  `input[placeholder='Wallet Address']`,
	Collect:  `button[type='button']`,
	Captcha:  `.g-recaptcha`,
	Response: `#g-recaptcha-response`,
	Confirm:  `#confirmButton`,
}

type Options struct {
	URL         string
	SiteKey     string // skips reading data-sitekey from the page when set
	Headless    bool
	ExecPath    string // Chrome binary, empty for auto-detection
	Timeout     time.Duration
	CaptchaWait time.Duration // after clicking collect
	SettleWait  time.Duration // after confirming
}

func DefaultOptions(url string) Options {
	return Options{
		URL:         url,
		Headless:    true,
		Timeout:     5 * time.Minute,
		CaptchaWait: 5 * time.Second,
		SettleWait:  10 * time.Second,
	}
}

type Collector struct {
	opts    Options
	sel     Selectors
	solver  Solver
	proxies []proxy.Proxy
	log     zerolog.Logger
	rnd     *rand.Rand
}

func NewCollector(opts Options, solver Solver, proxies []proxy.Proxy, log zerolog.Logger) *Collector {
	return &Collector{
		opts:    opts,
		sel:     DefaultSelectors,
		solver:  solver,
		proxies: proxies,
		log:     log.With().Str("component", "faucet").Logger(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type Result struct {
	Address string
	Proxy   string
	OK      bool
	Err     error
}

func (c *Collector) pickProxy() *proxy.Proxy {
	if len(c.proxies) == 0 {
		return nil
	}
	p := c.proxies[c.rnd.Intn(len(c.proxies))]
	return &p
}

func (c *Collector) allocatorOptions(p *proxy.Proxy) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.DisableGPU,
		chromedp.UserAgent(randomUserAgent(c.rnd)),
	)
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	if p != nil {
		opts = append(opts, chromedp.ProxyServer(p.Server()))
	}
	return opts
}

// Claim runs one faucet claim for address. The browser is torn down before it returns.
func (c *Collector) Claim(ctx context.Context, address string) Result {
	res := Result{Address: address}
	p := c.pickProxy()
	log := c.log.With().Str("address", address).Logger()
	if p != nil {
		res.Proxy = p.String()
		log = log.With().Str("proxy", p.String()).Logger()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions(p)...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(f string, a ...interface{}) { log.Debug().Msgf(f, a...) }),
	)
	defer cancelBrowser()
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		browserCtx, cancel = context.WithTimeout(browserCtx, c.opts.Timeout)
		defer cancel()
	}

	var pre []chromedp.Action
	if p != nil && p.HasAuth() {
		if p.Scheme == "http" || p.Scheme == "https" {
			handleProxyAuth(browserCtx, *p)
			pre = append(pre, fetch.Enable().WithHandleAuthRequests(true))
		} else {
			log.Warn().Msg("chrome cannot authenticate to socks proxies, credentials ignored")
		}
	}

	log.Info().Msg("opening faucet page")
	siteKey := c.opts.SiteKey
	var found bool
	steps := append(pre,
		chromedp.Navigate(c.opts.URL),
		chromedp.WaitVisible(c.sel.Address, chromedp.ByQuery),
		chromedp.SendKeys(c.sel.Address, address, chromedp.ByQuery),
		chromedp.Click(c.sel.Collect, chromedp.ByQuery),
		chromedp.Sleep(c.opts.CaptchaWait),
	)
	if siteKey == "" {
		steps = append(steps, chromedp.AttributeValue(c.sel.Captcha, "data-sitekey", &siteKey, &found, chromedp.ByQuery))
	}
	if err := chromedp.Run(browserCtx, steps...); err != nil {
		res.Err = fmt.Errorf("fill form: %w", err)
		log.Error().Err(res.Err).Msg("faucet claim failed")
		return res
	}
	if siteKey == "" {
		res.Err = errors.New("captcha site key not found on page")
		log.Error().Err(res.Err).Msg("faucet claim failed")
		return res
	}

	token, err := c.solver.SolveRecaptchaV2(browserCtx, siteKey, c.opts.URL)
	if err != nil {
		res.Err = fmt.Errorf("solve captcha: %w", err)
		log.Error().Err(res.Err).Msg("faucet claim failed")
		return res
	}

	var injected bool
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(injectScript(c.sel.Response, token), &injected)); err != nil {
		res.Err = fmt.Errorf("inject captcha token: %w", err)
		log.Error().Err(res.Err).Msg("faucet claim failed")
		return res
	}
	if !injected {
		res.Err = fmt.Errorf("captcha response field %s not found", c.sel.Response)
		log.Error().Err(res.Err).Msg("faucet claim failed")
		return res
	}
	if err := chromedp.Run(browserCtx,
		chromedp.Click(c.sel.Confirm, chromedp.ByQuery),
		chromedp.Sleep(c.opts.SettleWait),
	); err != nil {
		res.Err = fmt.Errorf("confirm: %w", err)
		log.Error().Err(res.Err).Msg("faucet claim failed")
		return res
	}

	res.OK = true
	log.Info().Msg("faucet claim submitted")
	return res
}

// ClaimAll claims for every account in order and stops early when ctx is done.
func (c *Collector) ClaimAll(ctx context.Context, accounts []chain.Account) []Result {
	out := make([]Result, 0, len(accounts))
	for _, acc := range accounts {
		if ctx.Err() != nil {
			break
		}
		out = append(out, c.Claim(ctx, acc.Address))
	}
	return out
}

// handleProxyAuth answers proxy auth challenges and resumes paused requests.
func handleProxyAuth(ctx context.Context, p proxy.Proxy) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				exec := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)
				_ = fetch.ContinueRequest(e.RequestID).Do(exec)
			}()
		case *fetch.EventAuthRequired:
			go func() {
				exec := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)
				_ = fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}).Do(exec)
			}()
		}
	})
}

// injectScript reveals the response textarea, stores the token in it and
// reports whether the element exists.
func injectScript(selector, token string) string {
	sel, _ := json.Marshal(selector)
	tok, _ := json.Marshal(token)
	return fmt.Sprintf(`(function(){var el=document.querySelector(%s);if(!el){return false;}el.style.display='block';el.value=%s;return true;})()`, sel, tok)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
}

func randomUserAgent(r *rand.Rand) string { return userAgents[r.Intn(len(userAgents))] }
