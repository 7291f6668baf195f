// Package credential decides which Alpha Vantage key a request uses and
// builds the outbound URL for it.
package credential

import (
	"errors"
	"net/http"
	"net/url"
)

// CookieName holds the user's own API key, stored verbatim.
const CookieName = "apikey"

type Mode int

const (
	// ModeProxy sends only the ticker; the proxy injects its shared key.
	ModeProxy Mode = iota
	// ModeDirect calls the upstream with the user's key.
	ModeDirect
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "proxy"
}

type Credential struct {
	Mode Mode
	Key  string
}

// Proxy is the default credential.
func Proxy() Credential {
	return Credential{Mode: ModeProxy}
}

// Direct uses the given key. An empty key falls back to proxy mode.
func Direct(key string) Credential {
	if key == "" {
		return Proxy()
	}
	return Credential{Mode: ModeDirect, Key: key}
}

// FromRequest returns the direct credential when the browser sent a non-empty
// key cookie, and the proxy credential otherwise.
func FromRequest(r *http.Request) Credential {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Proxy()
	}
	return Direct(c.Value)
}

// ErrInvalidKey rejects keys a cookie cannot carry unchanged.
var ErrInvalidKey = errors.New("key may only contain printable ASCII other than \", ; and \\")

// Save overwrites the key cookie with the raw key. Keys with bytes that
// net/http would strip from a cookie value are refused instead of being
// stored altered.
func Save(w http.ResponseWriter, key string) (Credential, error) {
	for i := 0; i < len(key); i++ {
		if b := key[i]; b < 0x20 || b >= 0x7f || b == '"' || b == ';' || b == '\\' {
			return Credential{}, ErrInvalidKey
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:  CookieName,
		Value: key,
		Path:  "/",
	})
	return Direct(key), nil
}

type Resolver struct {
	UpstreamURL string
	ProxyURL    string
}

// Resolve builds the fully-qualified EARNINGS request URL for ticker. The
// ticker is not validated; whatever the user typed is forwarded.
func (r Resolver) Resolve(cred Credential, ticker string) string {
	query := "function=EARNINGS&symbol=" + url.QueryEscape(ticker)
	if cred.Mode == ModeDirect {
		return r.UpstreamURL + "?" + query + "&apikey=" + url.QueryEscape(cred.Key)
	}
	return r.ProxyURL + "?" + query
}
