// Package auth maps bearer tokens onto caller identities and scopes.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zeebo/blake3"
)

// AdminCaller is the caller identity of the legacy api_key.
const AdminCaller = "admin"

// Well-known scopes. A "<resource>:rw" grant implies "<resource>:ro".
const (
	ScopeAll      = "*"
	ScopeQueryRW  = "query:rw"
	ScopeQueryRO  = "query:ro"
	ScopeTasksRO  = "tasks:ro"
	ScopeEventsRO = "events:ro"
)

// TokenConfig is a bearer token bound to a caller identity and a set of scopes.
type TokenConfig struct {
	Token  string
	Caller string
	Scopes []string
}

// Principal is an authenticated caller. Caller feeds admission control.
type Principal struct {
	Caller string
	Scopes map[string]struct{}
}

// Allows reports whether p holds any of required. No requirement always
// passes.
func (p Principal) Allows(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if _, ok := p.Scopes[ScopeAll]; ok {
		return true
	}
	for _, s := range required {
		if _, ok := p.Scopes[s]; ok {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errors.New("missing API key")
	}
	return token, nil
}

type digest [32]byte

func digestOf(token string) digest {
	return blake3.Sum256([]byte(token))
}

type entry struct {
	sum       digest
	principal Principal
}

// Keyring holds token digests only; plaintext tokens are dropped after
// construction.
type Keyring struct {
	entries []entry
}

// NewKeyring builds a keyring from the legacy admin key (may be empty) and
// scoped tokens. Duplicate tokens are rejected.
func NewKeyring(legacyAPIKey string, tokens []TokenConfig) (*Keyring, error) {
	k := &Keyring{}
	seen := make(map[digest]struct{}, len(tokens)+1)
	add := func(token string, p Principal) error {
		sum := digestOf(token)
		if _, dup := seen[sum]; dup {
			return fmt.Errorf("token for caller %q is configured more than once", p.Caller)
		}
		seen[sum] = struct{}{}
		k.entries = append(k.entries, entry{sum: sum, principal: p})
		return nil
	}

	if legacyAPIKey != "" {
		if err := add(legacyAPIKey, Principal{
			Caller: AdminCaller,
			Scopes: map[string]struct{}{ScopeAll: {}},
		}); err != nil {
			return nil, err
		}
	}
	for i, t := range tokens {
		if t.Token == "" {
			return nil, fmt.Errorf("token %d has no value", i)
		}
		if err := add(t.Token, Principal{
			Caller: strings.TrimSpace(t.Caller),
			Scopes: normalizeScopes(t.Scopes),
		}); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// Len returns the number of configured credentials.
func (k *Keyring) Len() int { return len(k.entries) }

// Authenticate returns the principal for presented. Every entry is compared
// so timing does not reveal which one matched.
func (k *Keyring) Authenticate(presented string) (Principal, bool) {
	if presented == "" {
		return Principal{}, false
	}
	sum := digestOf(presented)

	var found Principal
	matched := 0
	for _, e := range k.entries {
		if subtle.ConstantTimeCompare(sum[:], e.sum[:]) == 1 {
			found = e.principal
			matched = 1
		}
	}
	return found, matched == 1
}

func normalizeScopes(scopes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out[s] = struct{}{}
		if resource, ok := strings.CutSuffix(s, ":rw"); ok {
			out[resource+":ro"] = struct{}{}
		}
	}
	return out
}
