// Package earnings fetches Alpha Vantage EARNINGS documents and turns them
// into index-aligned series.
package earnings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"epschart/logger"
)

type Options struct {
	// HTTPClient defaults to a client without a timeout; the request context
	// is the only deadline.
	HTTPClient *http.Client
	// RateLimitMessage is the exact Information text meaning "quota spent".
	RateLimitMessage string
	// StrictNumbers rejects numeric fields that do not parse instead of
	// rendering them as missing.
	StrictNumbers bool
}

// Client performs one outbound EARNINGS request per Fetch. It never retries.
type Client struct {
	httpClient       *http.Client
	rateLimitMessage string
	strictNumbers    bool
	schema           *jsonschema.Schema
}

func NewClient(opts Options) (*Client, error) {
	schema, err := compilePayloadSchema()
	if err != nil {
		return nil, fmt.Errorf("compile earnings schema: %w", err)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		httpClient:       client,
		rateLimitMessage: opts.RateLimitMessage,
		strictNumbers:    opts.StrictNumbers,
		schema:           schema,
	}, nil
}

// Fetch requests rawURL and returns the normalized series.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Series, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Series{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", AcceptEncoding)

	logger.Debugf("earnings request %s", RedactURL(rawURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Series{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := ReadBody(resp)
	if readErr == nil && c.IsRateLimited(body) {
		return Series{}, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Series{}, &StatusError{Code: resp.StatusCode}
	}
	if readErr != nil {
		return Series{}, readErr
	}
	return c.Parse(body)
}

// IsRateLimited reports whether body's top-level Information field is exactly
// the quota sentinel.
func (c *Client) IsRateLimited(body []byte) bool {
	if c.rateLimitMessage == "" || !gjson.ValidBytes(body) {
		return false
	}
	info := gjson.GetBytes(body, "Information")
	return info.Type == gjson.String && info.Str == c.rateLimitMessage
}

// Parse validates an EARNINGS document and normalizes it.
func (c *Client) Parse(body []byte) (Series, error) {
	if !gjson.ValidBytes(body) {
		return Series{}, fmt.Errorf("%w: body is not JSON", ErrUnexpectedShape)
	}
	if c.IsRateLimited(body) {
		return Series{}, ErrRateLimited
	}
	doc := gjson.ParseBytes(body)
	if !doc.Get("quarterlyEarnings").Exists() {
		for _, field := range []string{"Error Message", "Information", "Note"} {
			if msg := doc.Get(field).String(); msg != "" {
				return Series{}, &UpstreamError{Message: msg}
			}
		}
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return Series{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if err := c.schema.Validate(generic); err != nil {
		return Series{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}

	records, err := c.records(doc.Get("quarterlyEarnings"))
	if err != nil {
		return Series{}, err
	}
	return Normalize(doc.Get("symbol").String(), records), nil
}

func (c *Client) records(list gjson.Result) ([]Record, error) {
	entries := list.Array()
	records := make([]Record, 0, len(entries))
	for i, e := range entries {
		rec := Record{
			FiscalDateEnding: e.Get("fiscalDateEnding").String(),
			ReportedDate:     e.Get("reportedDate").String(),
		}
		fields := []struct {
			name string
			dst  *decimal.NullDecimal
		}{
			{"reportedEPS", &rec.ReportedEPS},
			{"estimatedEPS", &rec.EstimatedEPS},
			{"surprise", &rec.Surprise},
			{"surprisePercentage", &rec.SurprisePercentage},
		}
		for _, f := range fields {
			v, err := c.amount(e.Get(f.name), i, f.name)
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		records = append(records, rec)
	}
	return records, nil
}

// amount parses one numeric field. Absent, null, "" and the upstream's "None"
// are missing values; anything else must parse unless strictNumbers is off.
func (c *Client) amount(v gjson.Result, idx int, field string) (decimal.NullDecimal, error) {
	var raw string
	switch v.Type {
	case gjson.Null:
		return decimal.NullDecimal{}, nil
	case gjson.Number:
		raw = v.Raw
	default:
		raw = strings.TrimSpace(v.Str)
	}
	if raw == "" || raw == "None" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		if c.strictNumbers {
			return decimal.NullDecimal{}, fmt.Errorf("%w: quarterlyEarnings[%d].%s %q is not a number", ErrUnexpectedShape, idx, field, raw)
		}
		logger.Debugf("quarterlyEarnings[%d].%s %q is not a number, rendering as missing", idx, field, raw)
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(d), nil
}

// RedactURL hides the apikey query parameter for logging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
