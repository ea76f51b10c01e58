package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, userID primitive.ObjectID, role string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID.Hex(),
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func runGuard(t *testing.T, guard gin.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/users/profile", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}

	guard(c)
	return w, c
}

func TestUserAuthMissingToken(t *testing.T) {
	w, _ := runGuard(t, UserAuth(testSecret), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUserAuthInvalidFormat(t *testing.T) {
	w, _ := runGuard(t, UserAuth(testSecret), "Token abc")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUserAuthExpiredToken(t *testing.T) {
	token := signTestToken(t, primitive.NewObjectID(), "user", -time.Minute)
	w, _ := runGuard(t, UserAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for expired token", w.Code)
	}
}

func TestUserAuthWrongSecret(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  primitive.NewObjectID().Hex(),
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	w, _ := runGuard(t, UserAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for wrong signing key", w.Code)
	}
}

func TestUserAuthInjectsIdentity(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signTestToken(t, userID, "user", time.Hour)

	w, c := runGuard(t, UserAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	got, ok := c.Get("userId")
	if !ok || got.(primitive.ObjectID) != userID {
		t.Errorf("userId in context = %v, want %s", got, userID.Hex())
	}
	role, _ := c.Get("role")
	if role != "user" {
		t.Errorf("role in context = %v, want user", role)
	}
}

func TestAdminAuthRejectsUserRole(t *testing.T) {
	token := signTestToken(t, primitive.NewObjectID(), "user", time.Hour)
	w, _ := runGuard(t, AdminAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestAdminAuthAcceptsAdminRole(t *testing.T) {
	token := signTestToken(t, primitive.NewObjectID(), "admin", time.Hour)
	w, _ := runGuard(t, AdminAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
