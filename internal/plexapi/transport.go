package plexapi

import (
	"crypto/tls"
	"net/http"
	"strings"
)

// selectiveVerifyTransport skips certificate verification for an explicit
// set of hosts and keeps default verification for everything else. Plex
// servers commonly run with self-signed certificates; a blanket skip would
// also disable verification for plex.tv traffic sharing the client.
type selectiveVerifyTransport struct {
	base     http.RoundTripper
	insecure http.RoundTripper
	hosts    map[string]struct{}
}

// NewSelectiveVerifyTransport returns a RoundTripper that disables TLS
// verification only for the given hostnames (case-insensitive, no port).
func NewSelectiveVerifyTransport(hosts ...string) http.RoundTripper {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &selectiveVerifyTransport{
		base: http.DefaultTransport,
		insecure: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		hosts: allowed,
	}
}

func (t *selectiveVerifyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" {
		if _, ok := t.hosts[strings.ToLower(req.URL.Hostname())]; ok {
			return t.insecure.RoundTrip(req)
		}
	}
	return t.base.RoundTrip(req)
}
