package authz

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	calls int
	token string
	err   error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*identity.Principal, error) {
	f.calls++
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	return &identity.Principal{SubjectID: "alice", TokenID: "jti-1"}, nil
}

func newRouter(a Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Authenticate(a, logging.New("json", "error", io.Discard)), func(c *gin.Context) {
		p, ok := PrincipalFrom(c.Request.Context())
		if !ok || p != MustPrincipal(c) {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, p.SubjectID)
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_MalformedHeaderNeverReachesProvider(t *testing.T) {
	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer   ", "Token x"} {
		a := &fakeAuthenticator{}
		w := do(newRouter(a), h)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", h)
		assert.JSONEq(t, `{"error":true,"message":"unauthorized","data":null}`, w.Body.String())
		assert.Zero(t, a.calls, "header %q", h)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	a := &fakeAuthenticator{}
	w := do(newRouter(a), "bearer tok-123")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
	assert.Equal(t, "tok-123", a.token)
}

func TestAuthenticate_ProviderErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrInvalidSignature, http.StatusUnauthorized},
		{common.ErrTokenRevoked, http.StatusUnauthorized},
		{common.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{common.ErrUpstreamRejected, http.StatusBadGateway},
	}
	for _, tt := range tests {
		a := &fakeAuthenticator{err: tt.err}
		w := do(newRouter(a), "Bearer tok")
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
		assert.Equal(t, 1, a.calls)
	}
}
