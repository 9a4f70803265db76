package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_MintsSessionCookie(t *testing.T) {
	m := NewManager(false, 3600)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	id := m.SessionID(w, r)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, id, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestManager_ReusesValidCookie(t *testing.T) {
	m := NewManager(false, 3600)
	existing := uuid.New().String()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: existing})
	w := httptest.NewRecorder()

	assert.Equal(t, existing, m.SessionID(w, r))
	assert.Empty(t, w.Result().Cookies(), "no new cookie when a valid one is presented")
}

func TestManager_RejectsMalformedCookie(t *testing.T) {
	m := NewManager(false, 3600)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})
	w := httptest.NewRecorder()

	id := m.SessionID(w, r)
	assert.NotEqual(t, "not-a-uuid", id)
	require.Len(t, w.Result().Cookies(), 1, "a fresh cookie replaces the malformed one")
}

func TestManager_SecureFlag(t *testing.T) {
	m := NewManager(true, 3600)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	m.SessionID(w, r)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}
