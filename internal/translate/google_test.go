package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xcard-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleBackend_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "gtx", q.Get("client"))
		assert.Equal(t, "auto", q.Get("sl"))
		assert.Equal(t, "zh-TW", q.Get("tl"))
		assert.Equal(t, "t", q.Get("dt"))
		assert.Equal(t, "Hello. World", q.Get("q"))
		_, _ = w.Write([]byte(`[[["你好。","Hello.",null,null,10],["世界","World",null,null,10]],null,"en"]`))
	}))
	defer srv.Close()

	b := NewGoogleBackend(config.TranslateConfig{Endpoint: srv.URL, Timeout: time.Second})
	out, err := b.Translate(context.Background(), "Hello. World", "zh-TW")
	require.NoError(t, err)
	assert.Equal(t, "你好。世界", out)
}

func TestGoogleBackend_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
		"wrong shape": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`["x"]`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			b := NewGoogleBackend(config.TranslateConfig{Endpoint: srv.URL, Timeout: time.Second})
			_, err := b.Translate(context.Background(), "hi", "zh-TW")
			assert.Error(t, err)
		})
	}
}
