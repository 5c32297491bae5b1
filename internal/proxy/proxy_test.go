package proxy

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Proxy
	}{
		{"1.2.3.4:8080", Proxy{Scheme: "http", Host: "1.2.3.4:8080"}},
		{"bob:pw@1.2.3.4:8080", Proxy{Scheme: "http", Host: "1.2.3.4:8080", Username: "bob", Password: "pw"}},
		{"1.2.3.4:8080:bob:pw", Proxy{Scheme: "http", Host: "1.2.3.4:8080", Username: "bob", Password: "pw"}},
		{"socks5://bob:pw@proxy.example:1080", Proxy{Scheme: "socks5", Host: "proxy.example:1080", Username: "bob", Password: "pw"}},
		{" HTTPS://proxy.example:443 ", Proxy{Scheme: "https", Host: "proxy.example:443"}},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "ftp://1.2.3.4:21", "just-a-host", "http://host"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestStringMasksPassword(t *testing.T) {
	p := Proxy{Scheme: "http", Host: "h:1", Username: "bob", Password: "secret"}
	assert.Equal(t, "http://bob:***@h:1", p.String())
	assert.Equal(t, "http://h:1", p.Server())
	assert.NotContains(t, p.String(), "secret")
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(p, []byte("# list\n1.2.3.4:80\n\nbad\nsocks5://h:1080\n"), 0o600))
	list, bad, err := Load(p)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, []int{4}, bad)
}

func TestCheckThroughHTTPProxy(t *testing.T) {
	var seenURL, seenAuth string
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenURL = r.URL.String()
		seenAuth = r.Header.Get("Proxy-Authorization")
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	defer fake.Close()

	p, err := Parse("bob:pw@" + strings.TrimPrefix(fake.URL, "http://"))
	require.NoError(t, err)

	res := Check(context.Background(), p, "http://probe.invalid/ip", 5*time.Second)
	require.NoError(t, res.Err)
	assert.True(t, res.OK)
	assert.Equal(t, "203.0.113.7", res.IP)
	assert.Equal(t, "http://probe.invalid/ip", seenURL)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("bob:pw")), seenAuth)
}

func TestCheckDeadProxy(t *testing.T) {
	fake := httptest.NewServer(http.NotFoundHandler())
	host := strings.TrimPrefix(fake.URL, "http://")
	fake.Close()

	p, err := Parse(host)
	require.NoError(t, err)
	res := Check(context.Background(), p, "http://probe.invalid/", time.Second)
	assert.False(t, res.OK)
	assert.Error(t, res.Err)
}

func TestCheckNon200(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusProxyAuthRequired)
	}))
	defer fake.Close()

	p, err := Parse(strings.TrimPrefix(fake.URL, "http://"))
	require.NoError(t, err)
	res := Check(context.Background(), p, "http://probe.invalid/", time.Second)
	assert.False(t, res.OK)
	assert.ErrorContains(t, res.Err, "407")
}

func TestSOCKSClientBuilds(t *testing.T) {
	p, err := Parse("socks5://u:p@127.0.0.1:1080")
	require.NoError(t, err)
	c, err := p.HTTPClient(time.Second)
	require.NoError(t, err)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr.DialContext)
	assert.Nil(t, tr.Proxy)
}
