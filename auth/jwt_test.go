package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/types"
)

func TestNewJWTSignerRejectsBadKey(t *testing.T) {
	for _, key := range []string{"", "nodot", ".secret", "id."} {
		_, err := NewJWTSigner(key)
		require.Error(t, err, "key %q", key)
		assert.Equal(t, types.ErrConfigMissing, types.KindOf(err))
	}
}

func TestJWTClaims(t *testing.T) {
	signer, err := NewJWTSigner("my-id.my-secret")
	require.NoError(t, err)

	before := time.Now().UnixMilli()
	raw, err := signer.Token()
	require.NoError(t, err)
	after := time.Now().UnixMilli()

	parsed, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		return []byte("my-secret"), nil
	}, jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "HS256", parsed.Header["alg"])
	assert.Equal(t, "SIGN", parsed.Header["sign_type"])

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "my-id", claims["api_key"])

	ts := int64(claims["timestamp"].(float64))
	exp := int64(claims["exp"].(float64))
	// Both in milliseconds since epoch; exp strictly in the future.
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
	assert.Equal(t, ts+time.Hour.Milliseconds(), exp)
	assert.Greater(t, exp, ts)
}

func TestJWTTokenCached(t *testing.T) {
	signer, err := NewJWTSigner("id.secret")
	require.NoError(t, err)

	first, err := signer.Token()
	require.NoError(t, err)
	second, err := signer.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Past the refresh margin a new token is minted.
	signer.expires = time.Now().Add(time.Minute)
	time.Sleep(2 * time.Millisecond)
	third, err := signer.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestJWTApply(t *testing.T) {
	signer, err := NewJWTSigner("id.secret")
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "https://open.bigmodel.cn/api/paas/v4/images/generations", nil)
	require.NoError(t, signer.Apply(req))
	assert.Contains(t, req.Header.Get("Authorization"), "Bearer ey")
}
