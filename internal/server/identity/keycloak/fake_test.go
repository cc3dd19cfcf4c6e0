package keycloak

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testRealm    = "villages"
	testClientID = "village-api"
	testSecret   = "s3cret"
	testAdmin    = "admin"
	testAdminPW  = "adminpw"
	adminToken   = "admin-token"
	testKeyID    = "k1"
)

type fakeUser struct {
	rep      UserRepresentation
	password string
}

// fakeKeycloak serves the token, certs and admin user endpoints for one realm.
type fakeKeycloak struct {
	t   *testing.T
	srv *httptest.Server
	key *rsa.PrivateKey

	mu    sync.Mutex
	users map[string]*fakeUser

	certsHits    atomic.Int32
	failReset    bool
	failLookup   bool
	omitLocation bool
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeKeycloak{t: t, key: key, users: map[string]*fakeUser{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /realms/master/protocol/openid-connect/token", f.adminTokenHandler)
	mux.HandleFunc("POST /realms/"+testRealm+"/protocol/openid-connect/token", f.userTokenHandler)
	mux.HandleFunc("GET /realms/"+testRealm+"/protocol/openid-connect/certs", f.certsHandler)
	mux.HandleFunc("POST /admin/realms/"+testRealm+"/users", f.admin(f.createUser))
	mux.HandleFunc("GET /admin/realms/"+testRealm+"/users", f.admin(f.listUsers))
	mux.HandleFunc("PUT /admin/realms/"+testRealm+"/users/{id}/reset-password", f.admin(f.resetPassword))
	mux.HandleFunc("DELETE /admin/realms/"+testRealm+"/users/{id}", f.admin(f.deleteUser))

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeKeycloak) config() Config {
	return Config{
		BaseURL:       f.srv.URL,
		Realm:         testRealm,
		ClientID:      testClientID,
		ClientSecret:  testSecret,
		AdminUser:     testAdmin,
		AdminPassword: testAdminPW,
		Timeout:       2 * time.Second,
	}
}

func (f *fakeKeycloak) issuer() string {
	return f.srv.URL + "/realms/" + testRealm
}

// sign mints an RS256 token with the realm key, overriding defaults with extra.
func (f *fakeKeycloak) sign(sub string, extra jwt.MapClaims) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iss": f.issuer(),
		"azp": testClientID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"jti": uuid.NewString(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	s, err := tok.SignedString(f.key)
	require.NoError(f.t, err)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func invalidGrant(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant", "error_description": "Invalid user credentials"})
}

func (f *fakeKeycloak) adminTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("client_id") != DefaultAdminClientID ||
		r.PostFormValue("username") != testAdmin || r.PostFormValue("password") != testAdminPW {
		invalidGrant(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": adminToken, "token_type": "Bearer", "expires_in": 60})
}

func (f *fakeKeycloak) userTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("grant_type") != "password" ||
		r.PostFormValue("client_id") != testClientID || r.PostFormValue("client_secret") != testSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized_client"})
		return
	}

	f.mu.Lock()
	var found *fakeUser
	for _, u := range f.users {
		if u.rep.Username == r.PostFormValue("username") {
			found = u
		}
	}
	f.mu.Unlock()

	if found == nil || found.password == "" || found.password != r.PostFormValue("password") {
		invalidGrant(w)
		return
	}

	token := f.sign(found.rep.ID, jwt.MapClaims{"email": found.rep.Email, "preferred_username": found.rep.Username})
	writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": 300})
}

func (f *fakeKeycloak) certsHandler(w http.ResponseWriter, _ *http.Request) {
	f.certsHits.Add(1)
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
		{Key: &f.key.PublicKey, KeyID: testKeyID, Algorithm: "RS256", Use: "sig"},
	}}
	writeJSON(w, http.StatusOK, set)
}

func (f *fakeKeycloak) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+adminToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *fakeKeycloak) createUser(w http.ResponseWriter, r *http.Request) {
	var rep UserRepresentation
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.rep.Username == rep.Username {
			writeJSON(w, http.StatusConflict, map[string]string{"errorMessage": "User exists with same username"})
			return
		}
	}
	rep.ID = uuid.NewString()
	f.users[rep.ID] = &fakeUser{rep: rep}

	if !f.omitLocation {
		w.Header().Set("Location", f.srv.URL+"/admin/realms/"+testRealm+"/users/"+rep.ID)
	}
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeKeycloak) listUsers(w http.ResponseWriter, r *http.Request) {
	if f.failLookup {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	username := r.URL.Query().Get("username")
	out := []UserRepresentation{}
	for _, u := range f.users {
		if username == "" || u.rep.Username == username {
			out = append(out, u.rep)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeKeycloak) resetPassword(w http.ResponseWriter, r *http.Request) {
	if f.failReset {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var cred credentialRepresentation
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil || cred.Temporary {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[r.PathValue("id")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	u.password = cred.Value
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeKeycloak) deleteUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.users[id]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(f.users, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeKeycloak) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}
