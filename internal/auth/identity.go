package auth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Identity is the normalized profile obtained from the identity provider.
// It is immutable once attached to a session.
type Identity struct {
	Provider       string          `json:"provider"`
	ProviderUserID string          `json:"provider_user_id"`
	DisplayName    string          `json:"display_name"`
	Emails         []string        `json:"emails"`
	EmailVerified  bool            `json:"email_verified"`
	Picture        string          `json:"picture,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// PrimaryEmail returns the first email reported by the provider, or "".
func (i Identity) PrimaryEmail() string {
	if len(i.Emails) == 0 {
		return ""
	}
	return i.Emails[0]
}

// ProviderErrorKind classifies failures of the authorization-code exchange.
type ProviderErrorKind string

const (
	KindInvalidCode         ProviderErrorKind = "invalid_code"
	KindStateMismatch       ProviderErrorKind = "state_mismatch"
	KindProviderUnavailable ProviderErrorKind = "provider_unavailable"
	KindScopeDenied         ProviderErrorKind = "scope_denied"
)

// ProviderError wraps a failure from the identity provider. The kind is
// logged server-side; end users only ever see the generic failure page.
type ProviderError struct {
	Kind ProviderErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider error: %s", e.Kind)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorKind extracts the ProviderErrorKind from err, defaulting to
// provider_unavailable for errors that are not ProviderErrors.
func ErrorKind(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProviderUnavailable
}
