package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Reason is an internal verification failure code. It is meant for logs and
// metrics only; callers see a single unauthenticated response.
type Reason string

const (
	ReasonBadSignature  Reason = "bad_signature"
	ReasonWrongIssuer   Reason = "wrong_issuer"
	ReasonWrongAudience Reason = "wrong_audience"
	ReasonExpired       Reason = "expired"
	ReasonMalformed     Reason = "malformed"
)

type VerifyError struct {
	Reason Reason
	Err    error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return "token verification failed: " + string(e.Reason) + ": " + e.Err.Error()
	}
	return "token verification failed: " + string(e.Reason)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the verification reason from err, or "" when err is not a VerifyError.
func ReasonOf(err error) Reason {
	var verr *VerifyError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

// classify maps parser errors to reasons in verification order: signature,
// issuer, audience, lifetime.
func classify(err error) *VerifyError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerifyError{Reason: ReasonMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerifyError{Reason: ReasonBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return &VerifyError{Reason: ReasonWrongIssuer, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return &VerifyError{Reason: ReasonWrongAudience, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return &VerifyError{Reason: ReasonExpired, Err: err}
	default:
		return &VerifyError{Reason: ReasonMalformed, Err: err}
	}
}
