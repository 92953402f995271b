package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/pkg/apperror"
)

type stubParser struct {
	userID uuid.UUID
	role   string
	err    error
}

func (s stubParser) ParseAccess(string) (uuid.UUID, string, error) {
	return s.userID, s.role, s.err
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextRoleKey)})
	})
	r.GET("/items/:id", handlers...)
	return r
}

func get(r http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name   string
		parser stubParser
		header string
		want   int
	}{
		{"no header", stubParser{userID: userID, role: models.RoleUser}, "", http.StatusUnauthorized},
		{"not bearer", stubParser{userID: userID, role: models.RoleUser}, "Basic abc", http.StatusUnauthorized},
		{"invalid token", stubParser{err: errors.New("expired")}, "Bearer abc", http.StatusUnauthorized},
		{"unknown role", stubParser{userID: userID, role: "superuser"}, "Bearer abc", http.StatusUnauthorized},
		{"ok", stubParser{userID: userID, role: models.RoleMediator}, "Bearer abc", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(AuthMiddleware(tt.parser))
			header := map[string]string{}
			if tt.header != "" {
				header["Authorization"] = tt.header
			}

			w := get(r, "/items/"+uuid.NewString(), header)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	parser := stubParser{userID: uuid.New(), role: models.RoleUser}
	r := newEngine(AuthMiddleware(parser), RequireRole(models.RoleAdmin, models.RoleMediator))

	w := get(r, "/items/"+uuid.NewString(), map[string]string{"Authorization": "Bearer abc"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	parser.role = models.RoleMediator
	r = newEngine(AuthMiddleware(parser), RequireRole(models.RoleAdmin, models.RoleMediator))
	w = get(r, "/items/"+uuid.NewString(), map[string]string{"Authorization": "Bearer abc"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUUIDValidator(t *testing.T) {
	r := newEngine(UUIDValidator("id"))

	assert.Equal(t, http.StatusBadRequest, get(r, "/items/42", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/items/"+uuid.NewString(), nil).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(RateLimitMiddleware(memory.NewStore(), 2, time.Minute))
	target := "/items/" + uuid.NewString()

	first := get(r, target, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, get(r, target, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, target, nil).Code)
}

func TestNewRateLimitStore_MemoryWithoutRedis(t *testing.T) {
	store, err := NewRateLimitStore(nil)
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestCORSMiddleware(t *testing.T) {
	r := newEngine(CORSMiddleware([]string{"https://pups.example"}))
	target := "/items/" + uuid.NewString()

	allowed := get(r, target, map[string]string{"Origin": "https://pups.example"})
	assert.Equal(t, "https://pups.example", allowed.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", allowed.Header().Get("Vary"))

	denied := get(r, target, map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperror.ErrDisputeLocked)
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: deadlock detected"))
	})

	w := get(r, "/conflict", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), string(apperror.ErrCodeConflict))

	w = get(r, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "deadlock")
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := newEngine(RequestLogger())

	w := get(r, "/items/"+uuid.NewString(), nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = get(r, "/items/"+uuid.NewString(), map[string]string{RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}
