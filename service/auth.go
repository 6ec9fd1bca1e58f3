package service

import "botgateway/interfaces"

// staticTokenAuthenticator implements interfaces.Authenticator. It holds a fixed set of tokens
// loaded at startup from security.tokens (SPEC_FULL.md §5.1) and compares by exact string
// equality; there is no hashing, rate limiting, or expiry — callers above this layer are trusted
// to terminate on a failed validation.
type staticTokenAuthenticator struct {
	tokens map[string]struct{}
}

// NewStaticTokenAuthenticator builds an Authenticator from the configured token list. A nil or
// empty list is valid and makes Validate always return false, per SPEC_FULL.md §5.1.
func NewStaticTokenAuthenticator(tokens []string) interfaces.Authenticator {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return &staticTokenAuthenticator{tokens: set}
}

// Validate reports whether token is exactly one of the configured tokens.
func (a *staticTokenAuthenticator) Validate(token string) bool {
	if token == "" {
		return false
	}
	_, ok := a.tokens[token]
	return ok
}
