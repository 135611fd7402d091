// Package geo derives best-effort geolocation attributes for a request.
// Lookups are advisory: absence of geo data is never an error.
package geo

import "net/http"

// Geo attribute keys.
const (
	KeyCountry = "country_iso"
	KeyCity    = "city"
	KeyASN     = "asn"
	KeyOrg     = "org"
)

// Edge headers a trusted upstream load balancer may stamp on requests.
var trustedHeaders = map[string]string{
	"X-Geo-Country-Iso": KeyCountry,
	"X-Geo-City":        KeyCity,
	"X-Geo-Asn":         KeyASN,
	"X-Geo-Org":         KeyOrg,
}

// HeaderResolver reads geolocation from trusted edge headers. It must
// only be enabled when the worker sits behind an edge that strips these
// headers from client traffic.
type HeaderResolver struct{}

// NewHeaderResolver returns a resolver backed by edge headers.
func NewHeaderResolver() *HeaderResolver { return &HeaderResolver{} }

// Resolve returns whatever geo attributes the edge provided. The result
// may be empty.
func (HeaderResolver) Resolve(remoteIP string, headers http.Header) map[string]string {
	out := map[string]string{}
	for header, key := range trustedHeaders {
		if v := headers.Get(header); v != "" {
			out[key] = v
		}
	}
	return out
}

// NoopResolver reports no geo data; used when geo headers are untrusted.
type NoopResolver struct{}

// Resolve always returns an empty attribute set.
func (NoopResolver) Resolve(remoteIP string, headers http.Header) map[string]string {
	return map[string]string{}
}
