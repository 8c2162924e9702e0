package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/database/dbtest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withUser(userID uint, mustChange bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != 0 {
			c.Set(UserIDKey, userID)
		}
		c.Set(MustChangePasswordKey, mustChange)
		c.Next()
	}
}

func ok(c *gin.Context) { c.Status(http.StatusNoContent) }

func TestCorrelationIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("X-Correlation-ID"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", strings.Repeat("x", 200))
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36)
}

func TestRequirePasswordChangeCompleted(t *testing.T) {
	r := gin.New()
	r.GET("/blocked", withUser(1, true), RequirePasswordChangeCompletedMiddleware(), ok)
	r.GET("/open", withUser(1, false), RequirePasswordChangeCompletedMiddleware(), ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blocked", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"password change required"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAdminMiddleware(t *testing.T) {
	db := dbtest.Open(t)
	admin := database.User{Email: "a@example.com", Username: "admin", IsStaff: true, IsActive: true}
	plain := database.User{Email: "p@example.com", Username: "plain", IsActive: true}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&plain).Error)

	cases := []struct {
		name   string
		userID uint
		want   int
	}{
		{"admin passes", admin.ID, http.StatusNoContent},
		{"regular user forbidden", plain.ID, http.StatusForbidden},
		{"unknown user forbidden", 999, http.StatusForbidden},
		{"anonymous unauthorized", 0, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", withUser(tc.userID, false), RequireAdminMiddleware(db), ok)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(c))

	c.Request.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(c))

	c.Request.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, BearerToken(c))
}
