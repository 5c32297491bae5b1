// Package captcha talks to the 2captcha API: reCAPTCHA v2 solving and the
// account balance.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://2captcha.com"

const notReady = "CAPCHA_NOT_READY"

var ErrTimeout = errors.New("captcha not solved in time")

type Client struct {
	BaseURL      string
	Key          string
	HTTP         *http.Client
	InitialDelay time.Duration // wait before the first poll
	PollInterval time.Duration
	MaxPolls     int

	log zerolog.Logger
}

func New(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL:      DefaultBaseURL,
		Key:          apiKey,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		InitialDelay: 10 * time.Second,
		PollInterval: 5 * time.Second,
		MaxPolls:     60,
		log:          log.With().Str("component", "2captcha").Logger(),
	}
}

type apiResponse struct {
	Status  int             `json:"status"`
	Request json.RawMessage `json:"request"`
}

// text returns the request field whether 2captcha sent it as a string or a number.
func (r apiResponse) text() string {
	var s string
	if err := json.Unmarshal(r.Request, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.Request))
}

func (c *Client) call(ctx context.Context, method, path string, params url.Values) (apiResponse, error) {
	params.Set("key", c.Key)
	params.Set("json", "1")
	endpoint := strings.TrimRight(c.BaseURL, "/") + path

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return apiResponse{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiResponse{}, fmt.Errorf("%s: %s", path, resp.Status)
	}
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return apiResponse{}, fmt.Errorf("%s: decode: %w", path, err)
	}
	return out, nil
}

// SolveRecaptchaV2 submits the site key and page URL and polls until a token is ready.
func (c *Client) SolveRecaptchaV2(ctx context.Context, siteKey, pageURL string) (string, error) {
	in, err := c.call(ctx, http.MethodPost, "/in.php", url.Values{
		"method":    {"userrecaptcha"},
		"googlekey": {siteKey},
		"pageurl":   {pageURL},
	})
	if err != nil {
		return "", err
	}
	if in.Status != 1 {
		return "", fmt.Errorf("submit rejected: %s", in.text())
	}
	id := in.text()
	c.log.Info().Str("id", id).Msg("captcha submitted")

	if err := wait(ctx, c.InitialDelay); err != nil {
		return "", err
	}
	for i := 0; i < c.MaxPolls; i++ {
		res, err := c.call(ctx, http.MethodGet, "/res.php", url.Values{"action": {"get"}, "id": {id}})
		if err != nil {
			return "", err
		}
		switch {
		case res.Status == 1:
			c.log.Info().Str("id", id).Msg("captcha solved")
			return res.text(), nil
		case res.text() == notReady:
			c.log.Debug().Str("id", id).Int("poll", i+1).Msg("captcha pending")
		default:
			return "", fmt.Errorf("solve failed: %s", res.text())
		}
		if err := wait(ctx, c.PollInterval); err != nil {
			return "", err
		}
	}
	return "", ErrTimeout
}

// Balance returns the account balance in USD.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	res, err := c.call(ctx, http.MethodGet, "/res.php", url.Values{"action": {"getbalance"}})
	if err != nil {
		return decimal.Zero, err
	}
	if res.Status != 1 {
		return decimal.Zero, fmt.Errorf("getbalance: %s", res.text())
	}
	bal, err := decimal.NewFromString(res.text())
	if err != nil {
		return decimal.Zero, fmt.Errorf("getbalance: %w", err)
	}
	return bal, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
