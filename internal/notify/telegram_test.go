package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramPostsHTMLMessage(t *testing.T) {
	var (
		gotPath string
		gotBody sendMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc", "-100", zerolog.Nop())
	tg.BaseURL = srv.URL
	tg.Notify(context.Background(), Bold("done")+" 2 transfers")

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, sendMessage{ChatID: "-100", Text: "<b>done</b> 2 transfers", ParseMode: "HTML"}, gotBody)
}

func TestTelegramLogsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	tg := NewTelegram("tok", "1", zerolog.New(&buf))
	tg.BaseURL = srv.URL
	tg.Notify(context.Background(), "hi")

	assert.Contains(t, buf.String(), "telegram rejected message")
	assert.Contains(t, buf.String(), "chat not found")
}

func TestTelegramTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	tg := NewTelegram("secret-token", "1", zerolog.New(&buf))
	tg.BaseURL = url
	tg.Notify(context.Background(), "hi")

	assert.Contains(t, buf.String(), "telegram send failed")
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestNewFallsBackToNop(t *testing.T) {
	assert.IsType(t, Nop{}, New("", "1", zerolog.Nop()))
	assert.IsType(t, Nop{}, New("tok", "", zerolog.Nop()))
	assert.IsType(t, &Telegram{}, New("tok", "1", zerolog.Nop()))
}

func TestBoldEscapes(t *testing.T) {
	assert.Equal(t, "<b>a&lt;b</b>", Bold("a<b"))
}
