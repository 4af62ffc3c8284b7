package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/staffops/staffing-api/internal/models"
)

func runRBAC(t *testing.T, claims *models.JWTClaims, userIDParam string, allowed ...string) (int, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	c.Request = req
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	if userIDParam != "" {
		c.Params = gin.Params{{Key: "user_id", Value: userIDParam}}
	}

	passed := false
	handler := RBAC(allowed...)
	handler(c)
	if !c.IsAborted() {
		passed = true
	}
	return w.Code, passed
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}
	_, passed := runRBAC(t, claims, "", "ADMIN", "CLIENT")
	assert.True(t, passed)
}

func TestRBACRejectsUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}
	code, passed := runRBAC(t, claims, "", "ADMIN", "CLIENT")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRBACSelfMatchesRouteParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}
	_, passed := runRBAC(t, claims, "u1", "ADMIN", "SELF")
	assert.True(t, passed)

	code, passed := runRBAC(t, claims, "someone-else", "ADMIN", "SELF")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRBACWithoutClaims(t *testing.T) {
	code, passed := runRBAC(t, nil, "", "ADMIN")
	assert.False(t, passed)
	assert.Equal(t, http.StatusUnauthorized, code)
}
