package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/crivus/quizlead/internal/auth"
)

func TestVerifier_RequireOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const secret = "test-secret"

	sign := func(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	valid := jwt.RegisteredClaims{
		Subject:   "owner-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := map[string]struct {
		header     string
		wantStatus int
		wantOwner  string
	}{
		"valid token": {
			header:     "Bearer " + sign(t, secret, valid),
			wantStatus: http.StatusOK,
			wantOwner:  "owner-1",
		},
		"no header": {
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		"not a bearer scheme": {
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
		"wrong secret": {
			header:     "Bearer " + sign(t, "other-secret", valid),
			wantStatus: http.StatusUnauthorized,
		},
		"expired token": {
			header: "Bearer " + sign(t, secret, jwt.RegisteredClaims{
				Subject:   "owner-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		"no subject": {
			header: "Bearer " + sign(t, secret, jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			v := auth.NewVerifier(auth.Config{Secret: secret})

			var gotOwner string
			r := gin.New()
			r.GET("/", v.RequireOwner(), func(c *gin.Context) {
				gotOwner, _ = auth.OwnerFrom(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantOwner, gotOwner)
		})
	}
}
