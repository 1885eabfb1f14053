package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Write([]byte(UserID(r.Context())))
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuth([]byte("secret"))
	token, err := auth.Sign(Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	require.NoError(t, err)
	other, err := NewAuth([]byte("other")).Sign(Claims{UserID: "u1"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "u1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"no bearer", token, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + other, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			auth.Authenticate(echoUser)(w, r, nil)
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	auth := NewAuth([]byte("secret"))
	token, err := auth.Sign(Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	auth.Authenticate(echoUser)(w, r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	auth := NewAuth([]byte("secret"))

	w := httptest.NewRecorder()
	auth.OptionalAuth(echoUser)(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	token, err := auth.Sign(Claims{UserID: "u7"})
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	auth.OptionalAuth(echoUser)(w, r, nil)
	assert.Equal(t, "u7", w.Body.String())
}
