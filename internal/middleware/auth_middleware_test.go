package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware("secret"), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": c.GetString("role")})
	})
	r.GET("/admin", JWTAuthMiddleware("secret"), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func request(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	userID := uuid.New()
	token, err := helpers.GenerateToken("secret", userID, models.RoleParticipant, time.Now())
	require.NoError(t, err)

	w := request(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())

	assert.Equal(t, http.StatusUnauthorized, request(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/me", "garbage").Code)
}

func TestAdminOnly(t *testing.T) {
	r := newAuthRouter()

	participant, err := helpers.GenerateToken("secret", uuid.New(), models.RoleParticipant, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, request(r, "/admin", participant).Code)

	admin, err := helpers.GenerateToken("secret", uuid.New(), models.RoleAdmin, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, request(r, "/admin", admin).Code)
}
