package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() models.JWTClaims {
	now := time.Now()
	return models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "campus-id",
			Audience:  jwt.ClaimStrings{"timetable"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func newTestAuthService() *AuthService {
	return NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "campus-id", Audience: []string{"timetable"}})
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := newTestAuthService()
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := newTestAuthService()

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "elsewhere"

	noRole := validClaims()
	noRole.Role = ""

	cases := map[string]string{
		"bad secret":   signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"expired":      signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"wrong issuer": signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer),
		"wrong method": signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()),
		"missing role": signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noRole),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}
