package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/ws"
)

type stubTokens struct {
	userID uuid.UUID
	role   string
	err    error
}

func (s stubTokens) ParseAccess(string) (uuid.UUID, string, error) {
	role := s.role
	if role == "" {
		role = "user"
	}
	return s.userID, role, s.err
}

func TestWSHandler_MissingToken(t *testing.T) {
	handler := NewWSHandler(ws.NewHub(), stubTokens{userID: uuid.New()})
	r := newTestRouter(http.MethodGet, "/api/ws", nil, handler.Handle)

	w := doJSON(r, http.MethodGet, "/api/ws", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSHandler_InvalidToken(t *testing.T) {
	handler := NewWSHandler(ws.NewHub(), stubTokens{err: errors.New("expired")})
	r := newTestRouter(http.MethodGet, "/api/ws", nil, handler.Handle)

	w := doJSON(r, http.MethodGet, "/api/ws?token=abc", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSHandler_UnknownRole(t *testing.T) {
	handler := NewWSHandler(ws.NewHub(), stubTokens{userID: uuid.New(), role: "owner"})
	r := newTestRouter(http.MethodGet, "/api/ws", nil, handler.Handle)

	w := doJSON(r, http.MethodGet, "/api/ws?token=abc", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
