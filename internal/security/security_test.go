package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.GenerateToken("u-1", "ana", []string{RoleOperator})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "ana", claims.Actor())
	assert.True(t, claims.HasRole(RoleOperator))
	assert.False(t, claims.HasRole(RoleViewer))
	assert.True(t, claims.HasAnyRole(RoleViewer, RoleOperator))
}

func TestValidateTokenRejects(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	t.Run("expired", func(t *testing.T) {
		expired, err := NewJWTManager("secret", -time.Minute).GenerateToken("u-1", "ana", nil)
		require.NoError(t, err)
		_, err = m.ValidateToken(expired)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewJWTManager("other", time.Hour).GenerateToken("u-1", "ana", nil)
		require.NoError(t, err)
		_, err = m.ValidateToken(other)
		assert.Error(t, err)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := &Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = m.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("no expiry", func(t *testing.T) {
		claims := &Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = m.ValidateToken(signed)
		assert.Error(t, err)
	})
}

func TestExtractTokenFromHeader(t *testing.T) {
	token, err := ExtractTokenFromHeader("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "Basic abc", "Bearer ", "bearer abc"} {
		_, err := ExtractTokenFromHeader(header)
		assert.Error(t, err, header)
	}
}

func TestRequireAnyRole(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	operator, err := m.GenerateToken("u-1", "ana", []string{RoleOperator})
	require.NoError(t, err)
	viewer, err := m.GenerateToken("u-2", "bo", []string{RoleViewer})
	require.NoError(t, err)

	newRouter := func(enabled bool) *gin.Engine {
		r := gin.New()
		r.POST("/restore/:table", NewAuthMiddleware(m, enabled).RequireAnyRole(RoleOperator), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r
	}

	do := func(r *gin.Engine, token string) int {
		req := httptest.NewRequest(http.MethodPost, "/restore/jobs", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	enabled := newRouter(true)
	assert.Equal(t, http.StatusOK, do(enabled, operator))
	assert.Equal(t, http.StatusForbidden, do(enabled, viewer))
	assert.Equal(t, http.StatusUnauthorized, do(enabled, ""))
	assert.Equal(t, http.StatusUnauthorized, do(enabled, "garbage"))

	assert.Equal(t, http.StatusOK, do(newRouter(false), ""))
}
