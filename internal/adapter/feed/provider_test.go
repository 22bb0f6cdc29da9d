package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func testProvider(t *testing.T, url string, timeout time.Duration) *Provider {
	t.Helper()
	p, err := NewProvider(url, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)), clockwork.NewFakeClockAt(fixedNow))
	require.NoError(t, err)
	return p
}

func TestCollect_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "milho", r.URL.Query().Get("commodity"))
		assert.Equal(t, "abc", r.URL.Query().Get("key"), "existing query params are kept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quotes":[
			{"origin_region":"PR","origin_city":"Cascavel","unit_price":62.5,"quality_score":0.88,"supplier_id":"coop-pr"},
			{"origin_region":"GO","unit_price":58,"quality_score":0.8,"supplier_id":"go-1","available":false,
			 "collected_at":"2026-03-01T08:00:00-03:00"}
		]}`))
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL+"?key=abc", time.Second)
	quotes, err := p.Collect(context.Background(), "milho")
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	first := quotes[0]
	assert.Equal(t, "milho", first.CommodityID)
	assert.Equal(t, "PR", first.OriginRegion)
	assert.Equal(t, "Cascavel", first.OriginCity)
	assert.Equal(t, 62.5, first.UnitPrice)
	assert.Equal(t, p.Name(), first.SourceName)
	assert.Equal(t, fixedNow, first.CollectedAt)
	assert.True(t, first.Available)

	second := quotes[1]
	assert.False(t, second.Available)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), second.CollectedAt)
}

func TestName_UsesHost(t *testing.T) {
	p := testProvider(t, "http://prices.example.com/v1/quotes", time.Second)
	assert.Equal(t, "feed:prices.example.com", p.Name())
}

func TestNewProvider_InvalidURL(t *testing.T) {
	_, err := NewProvider("not a url", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.Error(t, err)
}

func TestCollect_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	quotes, err := testProvider(t, srv.URL, time.Second).Collect(context.Background(), "cafe")
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestCollect_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := testProvider(t, srv.URL, time.Second).Collect(context.Background(), "soja")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestCollect_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quotes": [`))
	}))
	defer srv.Close()

	_, err := testProvider(t, srv.URL, time.Second).Collect(context.Background(), "soja")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}

func TestCollect_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := testProvider(t, srv.URL, time.Second).Collect(ctx, "soja")
	require.Error(t, err)
}

func TestCollect_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"quotes":[{"origin_region":"MT","unit_price":130,"quality_score":0.9,"supplier_id":"s"}]}`))
	}))
	defer srv.Close()

	quotes, err := testProvider(t, srv.URL, time.Second).Collect(context.Background(), "soja")
	require.NoError(t, err)
	assert.Len(t, quotes, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCollect_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testProvider(t, srv.URL, time.Second).Collect(context.Background(), "soja")
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestCollect_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testProvider(t, srv.URL, time.Second).Collect(context.Background(), "soja")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
