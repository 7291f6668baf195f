package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"epschart/cache"
	"epschart/earnings"
	"epschart/logger"
)

// Proxy answers EARNINGS requests from browsers without a key of their own by
// forwarding them upstream with the shared key. Successful bodies are
// memoized; rate-limit and error responses pass through uncached.
type Proxy struct {
	upstream string
	apiKey   string
	client   *http.Client
	limits   *earnings.Client
	cache    *cache.Cache
	ttl      time.Duration
}

func NewProxy(upstream, apiKey string, limits *earnings.Client, c *cache.Cache, ttl time.Duration) *Proxy {
	return &Proxy{
		upstream: upstream,
		apiKey:   apiKey,
		client:   &http.Client{},
		limits:   limits,
		cache:    c,
		ttl:      ttl,
	}
}

type proxyResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// uncached carries a response through cache.Memoize without it being stored.
type uncached struct {
	resp proxyResponse
}

func (u *uncached) Error() string {
	return fmt.Sprintf("uncacheable upstream response (status %d)", u.resp.Status)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	query := r.URL.Query()
	if !strings.EqualFold(query.Get("function"), "EARNINGS") {
		http.Error(w, "only function=EARNINGS is proxied", http.StatusBadRequest)
		return
	}
	symbol := query.Get("symbol")

	key := "proxy:" + strings.ToUpper(symbol)
	resp, err := cache.Memoize(r.Context(), p.cache, key, p.ttl, func() (proxyResponse, error) {
		resp, err := p.forward(r.Context(), symbol)
		if err != nil {
			return proxyResponse{}, err
		}
		if resp.Status < 200 || resp.Status > 299 || p.limits.IsRateLimited(resp.Body) {
			return proxyResponse{}, &uncached{resp: resp}
		}
		return resp, nil
	})

	var pass *uncached
	switch {
	case errors.As(err, &pass):
		logger.Warnf("proxy %q: %v", symbol, err)
		resp = pass.resp
	case err != nil:
		logger.Warnf("proxy %q failed: %v", symbol, err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (p *Proxy) forward(ctx context.Context, symbol string) (proxyResponse, error) {
	target := p.upstream + "?function=EARNINGS&symbol=" + url.QueryEscape(symbol) +
		"&apikey=" + url.QueryEscape(p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return proxyResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", earnings.AcceptEncoding)

	logger.Debugf("proxy request %s", earnings.RedactURL(target))
	res, err := p.client.Do(req)
	if err != nil {
		return proxyResponse{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer res.Body.Close()

	body, err := earnings.ReadBody(res)
	if err != nil {
		return proxyResponse{}, err
	}
	return proxyResponse{
		Status:      res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
