package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/types"
)

// Kind selects one of the closed set of auth strategies.
type Kind string

const (
	KindBearer        Kind = "bearer"
	KindJWTHS256      Kind = "jwt_hs256"
	KindCookieSession Kind = "cookie_session"
	KindCOSPresign    Kind = "cos_presign"
)

// Credentials carries every secret a strategy may need. Unused fields
// stay zero.
type Credentials struct {
	// APIKey is the bearer token, or "<id>.<secret>" for JWT signing.
	APIKey string

	// Consumer-site session material.
	Cookie    string
	CSRFToken string
	StatsigID string
	UserAgent string
	Origin    string

	// COS holds provider-issued short-lived object-storage credentials.
	COS *COSCredentials
}

// Strategy decorates an outgoing request with authentication material.
type Strategy interface {
	// Apply mutates the request in place. Called once per request; a
	// strategy may mint fresh material (tokens, request ids) each call.
	Apply(req *http.Request) error

	// Name identifies the strategy in logs.
	Name() string
}

// For builds the strategy for a kind from the given credentials.
func For(kind Kind, creds Credentials, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch kind {
	case KindBearer:
		if creds.APIKey == "" {
			return nil, types.NewError(types.ErrConfigMissing, "bearer auth requires api_key")
		}
		return &Bearer{Key: creds.APIKey}, nil
	case KindJWTHS256:
		return NewJWTSigner(creds.APIKey)
	case KindCookieSession:
		if creds.Cookie == "" {
			return nil, types.NewError(types.ErrConfigMissing, "cookie auth requires a session cookie")
		}
		return NewCookieSession(creds), nil
	case KindCOSPresign:
		if creds.COS == nil {
			return nil, types.NewError(types.ErrConfigMissing, "cos auth requires temporary credentials")
		}
		return &COSSigner{Creds: *creds.COS}, nil
	default:
		return nil, types.NewError(types.ErrConfigMissing, "unknown auth strategy "+string(kind))
	}
}
