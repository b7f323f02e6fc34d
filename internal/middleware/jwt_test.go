package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, method jwt.SigningMethod, secret []byte, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWTMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	handler := JWTMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, time.Now().Add(time.Hour)), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired token", "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/scan", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}
