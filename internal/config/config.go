package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrInvalid marks configuration problems that must abort an action before side effects.
var ErrInvalid = errors.New("invalid configuration")

const (
	NetworkSolana = "solana"
	NetworkEVM    = "evm"
)

// Settings keeps all configuration options.
// Key names mirror the config.json keys used by the scripts this tool replaced.
type Settings struct {
	Network      string
	RPCURL       string
	ChainID      int64
	RPCRateLimit float64 // requests per second, 0 means unlimited

	TransactionCount       int
	MinDelay               int // seconds
	MaxDelay               int // seconds
	MinAmount              decimal.Decimal
	MaxAmount              decimal.Decimal
	MaxConsecutiveFailures int

	SenderKeys     []string
	SendersFile    string
	SendersColumn  string
	RecipientsFile string

	FaucetURL      string
	CaptchaAPIKey  string
	CaptchaSiteKey string
	ProxyFile      string
	ProxyCheckURL  string

	TelegramToken  string
	TelegramChatID string
	ExplorerTxURL  string

	LogFile string
}

// keys maps every setting to the env names it may come from (lower_case and UPPER_CASE).
var keys = map[string][]string{
	"network":                  {"network", "NETWORK"},
	"rpc_url":                  {"rpc_url", "RPC_URL"},
	"chain_id":                 {"chain_id", "CHAIN_ID"},
	"rpc_rate_limit":           {"rpc_rate_limit", "RPC_RATE_LIMIT"},
	"transaction_count":        {"transaction_count", "TRANSACTION_COUNT"},
	"min_delay":                {"min_delay", "MIN_DELAY"},
	"max_delay":                {"max_delay", "MAX_DELAY"},
	"min_amount":               {"min_amount", "MIN_AMOUNT"},
	"max_amount":               {"max_amount", "MAX_AMOUNT"},
	"max_consecutive_failures": {"max_consecutive_failures", "MAX_CONSECUTIVE_FAILURES"},
	"sender_secret_key":        {"sender_secret_key", "SENDER_SECRET_KEY"},
	"senders_file":             {"senders_file", "SENDERS_FILE"},
	"senders_column":           {"senders_column", "SENDERS_COLUMN"},
	"recipients_file":          {"recipients_file", "RECIPIENTS_FILE"},
	"faucet_url":               {"faucet_url", "FAUCET_URL"},
	"captcha_api_key":          {"captcha_api_key", "CAPTCHA_API_KEY", "TWOCAPTCHA_API_KEY"},
	"captcha_site_key":         {"captcha_site_key", "CAPTCHA_SITE_KEY"},
	"proxy_file":               {"proxy_file", "PROXY_FILE"},
	"proxy_check_url":          {"proxy_check_url", "PROXY_CHECK_URL"},
	"telegram_token":           {"telegram_token", "TELEGRAM_TOKEN"},
	"telegram_chat_id":         {"telegram_chat_id", "TELEGRAM_CHAT_ID"},
	"explorer_tx_url":          {"explorer_tx_url", "EXPLORER_TX_URL"},
	"log_file":                 {"log_file", "LOG_FILE"},
}

// Load reads .env files, an optional config file and the environment.
// An empty path looks for config.{json,yaml,toml} in the working directory and
// silently continues when none exists.
func Load(path string) (Settings, error) {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	v := viper.New()
	v.SetDefault("network", NetworkSolana)
	v.SetDefault("rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("transaction_count", 100)
	v.SetDefault("min_delay", 30)
	v.SetDefault("max_delay", 180)
	v.SetDefault("min_amount", "0.000001")
	v.SetDefault("max_amount", "0.000001")
	v.SetDefault("senders_column", "PrivateKey")
	v.SetDefault("recipients_file", "wallets.txt")
	v.SetDefault("proxy_file", "proxies.txt")
	v.SetDefault("proxy_check_url", "https://api.ipify.org")
	v.SetDefault("log_file", "faucet_sender.log")
	for k, envs := range keys {
		_ = v.BindEnv(append([]string{k}, envs...)...)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("%w: read config: %v", ErrInvalid, err)
			}
		}
	}

	st := Settings{}
	st.Network = strings.ToLower(strings.TrimSpace(v.GetString("network")))
	st.RPCURL = strings.TrimSpace(v.GetString("rpc_url"))
	st.ChainID = v.GetInt64("chain_id")
	st.RPCRateLimit = v.GetFloat64("rpc_rate_limit")

	st.TransactionCount = v.GetInt("transaction_count")
	st.MinDelay = v.GetInt("min_delay")
	st.MaxDelay = v.GetInt("max_delay")
	st.MaxConsecutiveFailures = v.GetInt("max_consecutive_failures")

	var err error
	if st.MinAmount, err = decimal.NewFromString(strings.TrimSpace(v.GetString("min_amount"))); err != nil {
		return Settings{}, fmt.Errorf("%w: min_amount: %v", ErrInvalid, err)
	}
	if st.MaxAmount, err = decimal.NewFromString(strings.TrimSpace(v.GetString("max_amount"))); err != nil {
		return Settings{}, fmt.Errorf("%w: max_amount: %v", ErrInvalid, err)
	}

	st.SenderKeys = senderKeys(v.Get("sender_secret_key"))
	st.SendersFile = strings.TrimSpace(v.GetString("senders_file"))
	st.SendersColumn = strings.TrimSpace(v.GetString("senders_column"))
	st.RecipientsFile = strings.TrimSpace(v.GetString("recipients_file"))

	st.FaucetURL = strings.TrimSpace(v.GetString("faucet_url"))
	st.CaptchaAPIKey = strings.TrimSpace(v.GetString("captcha_api_key"))
	if st.CaptchaAPIKey == "" {
		// config.json files written for the old tooling use this key
		st.CaptchaAPIKey = strings.TrimSpace(v.GetString("2captcha_api_key"))
	}
	st.CaptchaSiteKey = strings.TrimSpace(v.GetString("captcha_site_key"))
	st.ProxyFile = strings.TrimSpace(v.GetString("proxy_file"))
	st.ProxyCheckURL = strings.TrimSpace(v.GetString("proxy_check_url"))

	st.TelegramToken = strings.TrimSpace(v.GetString("telegram_token"))
	st.TelegramChatID = strings.TrimSpace(v.GetString("telegram_chat_id"))
	st.ExplorerTxURL = strings.TrimSpace(v.GetString("explorer_tx_url"))
	st.LogFile = strings.TrimSpace(v.GetString("log_file"))

	return st, nil
}

// ValidateDispatch checks everything the send action needs before it touches the network.
func (st Settings) ValidateDispatch() error {
	var problems []string
	switch st.Network {
	case NetworkSolana, NetworkEVM:
	default:
		problems = append(problems, fmt.Sprintf("network %q is not supported", st.Network))
	}
	if st.RPCURL == "" {
		problems = append(problems, "rpc_url is empty")
	}
	if st.TransactionCount < 0 {
		problems = append(problems, "transaction_count must be >= 0")
	}
	if st.MinDelay < 0 || st.MaxDelay < st.MinDelay {
		problems = append(problems, fmt.Sprintf("delay range [%d, %d] is invalid", st.MinDelay, st.MaxDelay))
	}
	if !st.MinAmount.IsPositive() {
		problems = append(problems, "min_amount must be > 0")
	}
	if st.MaxAmount.LessThan(st.MinAmount) {
		problems = append(problems, "max_amount must be >= min_amount")
	}
	if st.MaxConsecutiveFailures < 0 {
		problems = append(problems, "max_consecutive_failures must be >= 0")
	}
	if len(st.SenderKeys) == 0 && st.SendersFile == "" {
		problems = append(problems, "neither sender_secret_key nor senders_file is set")
	}
	if st.RecipientsFile == "" {
		problems = append(problems, "recipients_file is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateFaucet checks the settings the faucet collector needs.
func (st Settings) ValidateFaucet() error {
	var problems []string
	if st.FaucetURL == "" {
		problems = append(problems, "faucet_url is empty")
	}
	if st.CaptchaAPIKey == "" {
		problems = append(problems, "captcha_api_key is empty")
	}
	if len(st.SenderKeys) == 0 && st.SendersFile == "" {
		problems = append(problems, "neither sender_secret_key nor senders_file is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// senderKeys accepts a comma separated string, a list of keys, or one
// solana-keygen byte array given raw or as a quoted string.
func senderKeys(raw any) []string {
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(val)
		if !strings.HasPrefix(s, "[") {
			return splitCSV(s)
		}
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return []string{s}
		}
		return senderKeys(list)
	case []any:
		if isByteArray(val) {
			return []string{jsonString(val)}
		}
		out := make([]string, 0, len(val))
		for _, e := range val {
			if arr, ok := e.([]any); ok {
				out = append(out, jsonString(arr))
				continue
			}
			if k := strings.TrimSpace(cast.ToString(e)); k != "" {
				out = append(out, k)
			}
		}
		return out
	default:
		return lo.Compact(lo.Map(cast.ToStringSlice(raw), func(k string, _ int) string {
			return strings.TrimSpace(k)
		}))
	}
}

func isByteArray(list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, e := range list {
		switch e.(type) {
		case string, []any, map[string]any, bool, nil:
			return false
		}
		if _, err := cast.ToUint8E(e); err != nil {
			return false
		}
	}
	return true
}

func jsonString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MaskSecret hides all but the edges of a secret for logs.
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 10 {
		return "***"
	}
	return s[:4] + "…" + s[len(s)-4:]
}
