package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, path string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRBACAllowsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: 1, Role: models.RoleAdmin}
	code := performRBAC(t, claims, "/users/9", string(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, code)
}

func TestRBACDeniesRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: 1, Role: models.RoleParent}
	code := performRBAC(t, claims, "/users/9", string(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRBACSelfMatchesOwnID(t *testing.T) {
	claims := &models.JWTClaims{UserID: 9, Role: models.RoleParent}
	code := performRBAC(t, claims, "/users/9", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusOK, code)

	code = performRBAC(t, claims, "/users/10", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRBACRequiresClaims(t *testing.T) {
	code := performRBAC(t, nil, "/users/9", string(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, code)
}
