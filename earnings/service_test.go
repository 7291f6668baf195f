package earnings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epschart/cache"
	"epschart/credential"
)

func TestServiceLookupRoutesByCredential(t *testing.T) {
	var lastQuery atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery.Store("upstream " + r.URL.RawQuery)
		_, _ = w.Write([]byte(singleQuarter))
	}))
	defer upstream.Close()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery.Store("proxy " + r.URL.RawQuery)
		_, _ = w.Write([]byte(singleQuarter))
	}))
	defer proxy.Close()

	svc := NewService(newTestClient(t, true),
		credential.Resolver{UpstreamURL: upstream.URL, ProxyURL: proxy.URL}, nil, 0)

	_, err := svc.Lookup(context.Background(), credential.Proxy(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, "proxy function=EARNINGS&symbol=IBM", lastQuery.Load())

	_, err = svc.Lookup(context.Background(), credential.Direct("K1"), "IBM")
	require.NoError(t, err)
	assert.Equal(t, "upstream function=EARNINGS&symbol=IBM&apikey=K1", lastQuery.Load())
}

func TestServiceLookupMemoizes(t *testing.T) {
	var hits atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(singleQuarter))
	}))
	defer proxy.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(newTestClient(t, true),
		credential.Resolver{UpstreamURL: proxy.URL, ProxyURL: proxy.URL},
		cache.NewWithClient(client), time.Hour)

	first, err := svc.Lookup(context.Background(), credential.Proxy(), "ibm")
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), credential.Proxy(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first.EndingDates, second.EndingDates)
	assert.True(t, first.Actual[0].Decimal.Equal(second.Actual[0].Decimal))
	assert.True(t, mr.Exists("epschart:earnings:proxy:IBM"))
}

func TestServiceDoesNotCacheRateLimit(t *testing.T) {
	var hits atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"Information": "` + testLimitMessage + `"}`))
	}))
	defer proxy.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(newTestClient(t, true),
		credential.Resolver{UpstreamURL: proxy.URL, ProxyURL: proxy.URL},
		cache.NewWithClient(client), time.Hour)

	for i := 0; i < 2; i++ {
		_, err := svc.Lookup(context.Background(), credential.Proxy(), "IBM")
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestServiceDirectCacheIsPerKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") == "SPENT" {
			_, _ = w.Write([]byte(`{"Information": "` + testLimitMessage + `"}`))
			return
		}
		_, _ = w.Write([]byte(singleQuarter))
	}))
	defer upstream.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := NewService(newTestClient(t, true),
		credential.Resolver{UpstreamURL: upstream.URL, ProxyURL: upstream.URL},
		cache.NewWithClient(client), time.Hour)

	_, err := svc.Lookup(context.Background(), credential.Direct("GOOD"), "IBM")
	require.NoError(t, err)
	_, err = svc.Lookup(context.Background(), credential.Direct("SPENT"), "IBM")
	assert.ErrorIs(t, err, ErrRateLimited)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "epschart:earnings:direct:"))
	assert.True(t, strings.HasSuffix(keys[0], ":IBM"))
	assert.NotContains(t, keys[0], "GOOD")
}
