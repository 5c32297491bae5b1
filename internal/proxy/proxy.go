// Package proxy parses the proxy list and builds HTTP clients that route
// through a single proxy.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"
)

type Proxy struct {
	Scheme   string // http, https or socks5
	Host     string // host:port
	Username string
	Password string
}

// Parse accepts "user:pass@host:port", "host:port", "host:port:user:pass"
// and any of them prefixed with http://, https:// or socks5://.
func Parse(s string) (Proxy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Proxy{}, errors.New("empty proxy")
	}
	if !strings.Contains(s, "://") {
		if parts := strings.Split(s, ":"); len(parts) == 4 && !strings.Contains(s, "@") {
			s = parts[2] + ":" + parts[3] + "@" + parts[0] + ":" + parts[1]
		}
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return Proxy{}, err
	}
	p := Proxy{Scheme: strings.ToLower(u.Scheme), Host: u.Host}
	switch p.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return Proxy{}, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if _, port, err := net.SplitHostPort(p.Host); err != nil || port == "" {
		return Proxy{}, fmt.Errorf("proxy %q needs host:port", p.Host)
	}
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	return p, nil
}

// Load reads one proxy per line. Blank lines and '#' comments are skipped;
// the line numbers of unparsable entries are reported in bad.
func Load(path string) (list []Proxy, bad []int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, perr := Parse(line)
		if perr != nil {
			bad = append(bad, n)
			continue
		}
		list = append(list, p)
	}
	return list, bad, sc.Err()
}

func (p Proxy) URL() *url.URL {
	u := &url.URL{Scheme: p.Scheme, Host: p.Host}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Server is the proxy address without credentials, as browsers expect it.
func (p Proxy) Server() string { return p.Scheme + "://" + p.Host }

func (p Proxy) HasAuth() bool { return p.Username != "" }

// String hides the password.
func (p Proxy) String() string {
	if p.Username == "" {
		return p.Server()
	}
	return p.Scheme + "://" + p.Username + ":***@" + p.Host
}

func (p Proxy) isSOCKS() bool { return strings.HasPrefix(p.Scheme, "socks5") }

// HTTPClient returns a client whose connections all go through p.
func (p Proxy) HTTPClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}
	if p.isSOCKS() {
		var auth *xproxy.Auth
		if p.Username != "" {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", p.Host, auth, xproxy.Direct)
		if err != nil {
			return nil, err
		}
		cd, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, errors.New("socks5 dialer does not support contexts")
		}
		tr.DialContext = cd.DialContext
	} else {
		tr.Proxy = http.ProxyURL(p.URL())
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

type CheckResult struct {
	Proxy   Proxy
	OK      bool
	IP      string // body of the probe response, usually the exit IP
	Latency time.Duration
	Err     error
}

// Check fetches probeURL through p.
func Check(ctx context.Context, p Proxy, probeURL string, timeout time.Duration) CheckResult {
	res := CheckResult{Proxy: p}
	client, err := p.HTTPClient(timeout)
	if err != nil {
		res.Err = err
		return res
	}
	defer client.CloseIdleConnections()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		res.Err = err
		return res
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	res.Latency = time.Since(start)
	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("probe returned %s", resp.Status)
		return res
	}
	res.OK = true
	res.IP = strings.TrimSpace(string(body))
	return res
}
