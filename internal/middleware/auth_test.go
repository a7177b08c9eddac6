package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/requestdata"
	"github.com/scentmatch/scentmatch-backend/internal/services"
)

const testSecret = "middleware-secret"

func testRouter(t *testing.T) (*gin.Engine, *uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.NewNop(), services.NewAuthService(testSecret, logger.NewNop()))
	var seen uuid.UUID
	r := gin.New()
	r.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		seen = rd.UserID
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func validToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireAuthBearerHeader(t *testing.T) {
	r, seen := testRouter(t)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if *seen != userID {
		t.Fatalf("handler saw user %s, want %s", *seen, userID)
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	r, seen := testRouter(t)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+validToken(t, userID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if *seen != userID {
		t.Fatalf("handler saw user %s, want %s", *seen, userID)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	r, _ := testRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{"no_token", ""},
		{"malformed", "Bearer nope"},
		{"wrong_scheme", "Basic dXNlcjpwYXNz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}
