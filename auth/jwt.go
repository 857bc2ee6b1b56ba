package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BaSui01/mediaflow/types"
)

const (
	jwtTTL = time.Hour
	// jwtRefreshMargin is how long before expiry a cached token stops
	// being handed out.
	jwtRefreshMargin = 5 * time.Minute
)

// JWTSigner implements the GLM-style HS256 scheme: the credential is
// "<id>.<secret>"; each token carries millisecond timestamps and the
// non-standard sign_type header. Tokens are cached until close to
// expiry; writer wins on refresh.
type JWTSigner struct {
	id     string
	secret []byte

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTSigner splits the composite credential.
func NewJWTSigner(apiKey string) (*JWTSigner, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || id == "" || secret == "" {
		return nil, types.NewError(types.ErrConfigMissing, `jwt auth requires an api key of the form "<id>.<secret>"`)
	}
	return &JWTSigner{id: id, secret: []byte(secret)}, nil
}

func (s *JWTSigner) Name() string { return "jwt_hs256" }

func (s *JWTSigner) Apply(req *http.Request) error {
	token, err := s.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Token returns a cached token while it has at least the refresh margin
// of TTL left, otherwise signs a fresh one.
func (s *JWTSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expires) > jwtRefreshMargin {
		return s.token, nil
	}

	now := time.Now()
	nowMS := now.UnixMilli()
	claims := jwt.MapClaims{
		"api_key":   s.id,
		"exp":       nowMS + jwtTTL.Milliseconds(),
		"timestamp": nowMS,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["sign_type"] = "SIGN"
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", types.NewError(types.ErrInternal, "sign jwt").WithCause(err)
	}
	s.token = signed
	s.expires = now.Add(jwtTTL)
	return signed, nil
}
