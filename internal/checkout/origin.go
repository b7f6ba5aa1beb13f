package checkout

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultFallbackOrigin is used when no other candidate is a usable origin.
const DefaultFallbackOrigin = "https://mechanical.sentinellab.tech"

// Origins are the candidate base origins for redirect and image URLs, in
// precedence order.
type Origins struct {
	Configured string
	Header     string
	RequestURL string
	Fallback   string
}

// OriginsFromRequest collects candidates from deployment config and the
// incoming request.
func OriginsFromRequest(r *http.Request, configured, fallback string) Origins {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}

	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	var requestURL string
	if host != "" {
		requestURL = scheme + "://" + host
	}

	return Origins{
		Configured: configured,
		Header:     r.Header.Get("Origin"),
		RequestURL: requestURL,
		Fallback:   fallback,
	}
}

// Resolve returns the first candidate that is a well-formed HTTPS origin,
// normalized to scheme://host.
func (o Origins) Resolve() *url.URL {
	for _, candidate := range []string{o.Configured, o.Header, o.RequestURL, o.Fallback} {
		if origin, ok := httpsOrigin(candidate); ok {
			return origin
		}
	}
	origin, _ := httpsOrigin(DefaultFallbackOrigin)
	return origin
}

func httpsOrigin(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" || u.User != nil {
		return nil, false
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return nil, false
	}
	return &url.URL{Scheme: u.Scheme, Host: strings.ToLower(u.Host)}, true
}

// AbsoluteURL resolves ref against base. Absolute URLs pass through and
// protocol-relative ones get https.
func AbsoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
