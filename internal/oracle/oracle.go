// Package oracle provides the verification capability handed to the
// inspection engine. The engine uses it to consult its challenge oracle;
// this side only carries it.
package oracle

// Static is a fixed-token capability loaded from configuration.
type Static struct {
	token string
}

// NewStatic returns a capability wrapping the given token. An empty token
// is valid and means the engine runs without oracle access.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Token returns the opaque capability token.
func (s *Static) Token() string { return s.token }
