package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmorady/authgate/pkg/api"
	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/auth/jwt"
	"github.com/mmorady/authgate/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore reports errors from every operation.
type failingStore struct {
	*memory.Store
	err error
}

func (s *failingStore) CreateUser(context.Context, api.UserInput) (*api.User, error) {
	return nil, s.err
}

func (s *failingStore) ListUsers(context.Context) ([]*api.User, error) {
	return nil, s.err
}

func (s *failingStore) HealthCheck(context.Context) error {
	return s.err
}

func newTestServer(t *testing.T, opts ...ServerOption) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(memory.New(), opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *gohttp.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := gohttp.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := gohttp.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *gohttp.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createUser(t *testing.T, baseURL, name, email string) api.User {
	t.Helper()
	resp := doJSON(t, gohttp.MethodPost, baseURL+"/users", api.UserInput{Name: name, Email: email})
	require.Equal(t, gohttp.StatusCreated, resp.StatusCode)
	return decode[api.User](t, resp)
}

func TestCreateAndGetUser(t *testing.T) {
	srv := newTestServer(t)

	created := createUser(t, srv.URL, "Alice", "alice@example.com")
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Alice", created.Name)
	assert.Equal(t, "alice@example.com", created.Email)

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users/1", nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, created, decode[api.User](t, resp))
}

func TestCreateUser_Invalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name      string
		body      any
		wantParam string
	}{
		{"missing name", map[string]string{"email": "a@example.com"}, "name"},
		{"blank name", api.UserInput{Name: "   ", Email: "a@example.com"}, "name"},
		{"bad email", api.UserInput{Name: "A", Email: "not-an-email"}, "email"},
		{"long name", api.UserInput{Name: strings.Repeat("x", 256), Email: "a@example.com"}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, gohttp.MethodPost, srv.URL+"/users", tt.body)
			require.Equal(t, gohttp.StatusBadRequest, resp.StatusCode)

			body := decode[api.ErrorResponse](t, resp)
			require.NotNil(t, body.Error)
			assert.Equal(t, api.ErrorTypeInvalidRequest, body.Error.Type)
			assert.Equal(t, tt.wantParam, body.Error.Param)
		})
	}
}

func TestCreateUser_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := gohttp.Post(srv.URL+"/users", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, gohttp.StatusBadRequest, resp.StatusCode)

	resp2, err := gohttp.Post(srv.URL+"/users", "text/plain", strings.NewReader(`{"name":"a","email":"a@example.com"}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, gohttp.StatusUnsupportedMediaType, resp2.StatusCode)
}

func TestCreateUser_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, WithMaxBodySize(64))

	body := `{"name":"` + strings.Repeat("x", 128) + `","email":"a@example.com"}`
	resp, err := gohttp.Post(srv.URL+"/users", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, gohttp.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv.URL, "Alice", "alice@example.com")

	resp := doJSON(t, gohttp.MethodPost, srv.URL+"/users", api.UserInput{Name: "Other", Email: "alice@example.com"})
	require.Equal(t, gohttp.StatusConflict, resp.StatusCode)

	body := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, api.ErrorTypeConflict, body.Error.Type)
	assert.Equal(t, "email", body.Error.Param)
}

func TestGetUser_NotFoundAndBadID(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users/42", nil)
	require.Equal(t, gohttp.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", decode[api.ErrorResponse](t, resp).Error.Message)

	for _, id := range []string{"abc", "0", "-1", "1.5"} {
		resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users/"+id, nil)
		assert.Equal(t, gohttp.StatusBadRequest, resp.StatusCode, "id %q", id)
	}
}

func TestListUsers(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users", nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]api.User](t, resp))

	createUser(t, srv.URL, "Alice", "alice@example.com")
	createUser(t, srv.URL, "Bob", "bob@example.com")

	resp = doJSON(t, gohttp.MethodGet, srv.URL+"/users", nil)
	users := decode[[]api.User](t, resp)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "Bob", users[1].Name)
}

func TestListUsers_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users", nil)
	var raw bytes.Buffer
	_, err := raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(raw.String()))
}

func TestSearchUsers(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv.URL, "Alice Smith", "alice@example.com")
	createUser(t, srv.URL, "Bob Smith", "bob@corp.example")
	createUser(t, srv.URL, "Carol", "carol@example.com")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by name", "name=smith", []string{"Alice Smith", "Bob Smith"}},
		{"by email", "email=EXAMPLE.COM", []string{"Alice Smith", "Carol"}},
		{"both", "name=smith&email=corp", []string{"Bob Smith"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users/search?"+tt.query, nil)
			require.Equal(t, gohttp.StatusOK, resp.StatusCode)

			var names []string
			for _, u := range decode[[]api.User](t, resp) {
				names = append(names, u.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSearchUsers_Errors(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv.URL, "Alice", "alice@example.com")

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users/search", nil)
	require.Equal(t, gohttp.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "At least one of name or email must be provided", decode[api.ErrorResponse](t, resp).Error.Message)

	resp = doJSON(t, gohttp.MethodGet, srv.URL+"/users/search?name=zed", nil)
	require.Equal(t, gohttp.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No users found matching the criteria", decode[api.ErrorResponse](t, resp).Error.Message)
}

func TestUpdateUser(t *testing.T) {
	srv := newTestServer(t)
	alice := createUser(t, srv.URL, "Alice", "alice@example.com")
	createUser(t, srv.URL, "Bob", "bob@example.com")

	resp := doJSON(t, gohttp.MethodPut, srv.URL+"/users/1", api.UserInput{Name: "Alicia", Email: "alicia@example.com"})
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	updated := decode[api.User](t, resp)
	assert.Equal(t, alice.ID, updated.ID)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "alicia@example.com", updated.Email)

	resp = doJSON(t, gohttp.MethodPut, srv.URL+"/users/1", api.UserInput{Name: "Alicia", Email: "bob@example.com"})
	assert.Equal(t, gohttp.StatusConflict, resp.StatusCode)

	resp = doJSON(t, gohttp.MethodPut, srv.URL+"/users/99", api.UserInput{Name: "Nobody", Email: "nobody@example.com"})
	assert.Equal(t, gohttp.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, gohttp.MethodPut, srv.URL+"/users/1", api.UserInput{Name: "", Email: "x@example.com"})
	assert.Equal(t, gohttp.StatusBadRequest, resp.StatusCode)
}

func TestDeleteUser(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv.URL, "Alice", "alice@example.com")

	resp := doJSON(t, gohttp.MethodDelete, srv.URL+"/users/1", nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "User deleted successfully", decode[api.MessageResponse](t, resp).Message)

	resp = doJSON(t, gohttp.MethodDelete, srv.URL+"/users/1", nil)
	assert.Equal(t, gohttp.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, gohttp.MethodGet, srv.URL+"/users/1", nil)
	assert.Equal(t, gohttp.StatusNotFound, resp.StatusCode)
}

func TestStoreFailureIsOpaque(t *testing.T) {
	store := &failingStore{Store: memory.New(), err: errors.New("connection reset by peer")}
	srv := httptest.NewServer(NewServer(store).Handler())
	defer srv.Close()

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/users", nil)
	require.Equal(t, gohttp.StatusInternalServerError, resp.StatusCode)

	body := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, api.ErrorTypeServerError, body.Error.Type)
	assert.NotContains(t, body.Error.Message, "connection reset")
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)

	resp = doJSON(t, gohttp.MethodGet, srv.URL+"/readyz", nil)
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)

	store := &failingStore{Store: memory.New(), err: errors.New("db down")}
	down := httptest.NewServer(NewServer(store).Handler())
	defer down.Close()

	resp = doJSON(t, gohttp.MethodGet, down.URL+"/readyz", nil)
	assert.Equal(t, gohttp.StatusServiceUnavailable, resp.StatusCode)
	resp = doJSON(t, gohttp.MethodGet, down.URL+"/healthz", nil)
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t)

	req, err := gohttp.NewRequest(gohttp.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")

	resp, err := gohttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))

	resp2 := doJSON(t, gohttp.MethodGet, srv.URL+"/healthz", nil)
	assert.NotEmpty(t, resp2.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, WithMetrics("/metrics"))

	doJSON(t, gohttp.MethodGet, srv.URL+"/users", nil)

	resp := doJSON(t, gohttp.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)

	var raw bytes.Buffer
	_, err := raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), `authgate_requests_total{method="GET",route="GET /users",status="2xx"}`)
}

// --- Authentication ---

const testSecret = "s3cr3t"

func newJWT(t *testing.T) *jwt.Strategy {
	t.Helper()
	s, err := jwt.New(jwt.Config{Secret: []byte(testSecret)})
	require.NoError(t, err)
	return s
}

func bearer(t *testing.T, s *jwt.Strategy, claims auth.Claims) string {
	t.Helper()
	token, err := s.Sign(claims)
	require.NoError(t, err)
	return "Bearer " + token
}

func getWithAuth(t *testing.T, url, authorization string) *gohttp.Response {
	t.Helper()
	req, err := gohttp.NewRequest(gohttp.MethodGet, url, nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := gohttp.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWhoAmI(t *testing.T) {
	strategy := newJWT(t)
	srv := newTestServer(t, WithAuth(&auth.Chain{Strategies: []auth.Strategy{strategy}}, nil))

	t.Run("valid token", func(t *testing.T) {
		exp := time.Now().Add(10 * time.Minute).Unix()
		resp := getWithAuth(t, srv.URL+"/whoami", bearer(t, strategy, auth.Claims{"sub": "alice", "exp": exp}))
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.Equal(t, "Access granted", body["message"])
		user, ok := body["user"].(map[string]any)
		require.True(t, ok, "user = %v", body["user"])
		assert.Equal(t, "alice", user["sub"])
		assert.Equal(t, float64(exp), user["exp"])
		assert.NotContains(t, body, "error")
	})

	t.Run("no token", func(t *testing.T) {
		resp := getWithAuth(t, srv.URL+"/whoami", "")
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.Equal(t, map[string]any{"error": "Unauthorized"}, body)
	})

	t.Run("expired token", func(t *testing.T) {
		resp := getWithAuth(t, srv.URL+"/whoami", bearer(t, strategy, auth.Claims{"sub": "alice", "exp": 1600000000}))
		require.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		assert.Equal(t, string(auth.KindExpiredToken), decode[api.ErrorResponse](t, resp).Error.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := jwt.New(jwt.Config{Secret: []byte("other")})
		require.NoError(t, err)
		resp := getWithAuth(t, srv.URL+"/whoami", bearer(t, other, auth.Claims{"sub": "alice"}))
		require.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, string(auth.KindInvalidToken), decode[api.ErrorResponse](t, resp).Error.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		resp := getWithAuth(t, srv.URL+"/whoami", "Bearer")
		require.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		resp := getWithAuth(t, srv.URL+"/whoami", "Basic YWxhZGRpbjpvcGVuc2VzYW1l")
		require.Equal(t, gohttp.StatusOK, resp.StatusCode)
		assert.Equal(t, "Unauthorized", decode[map[string]any](t, resp)["error"])
	})
}

func TestRequiredAuth(t *testing.T) {
	strategy := newJWT(t)
	chain := &auth.Chain{Strategies: []auth.Strategy{strategy}, Required: true}
	srv := newTestServer(t, WithAuth(chain, nil))

	resp := getWithAuth(t, srv.URL+"/users", "")
	assert.Equal(t, gohttp.StatusUnauthorized, resp.StatusCode)

	resp = getWithAuth(t, srv.URL+"/users", bearer(t, strategy, auth.Claims{"sub": "alice"}))
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)

	// Health endpoints stay open.
	resp = getWithAuth(t, srv.URL+"/healthz", "")
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
	resp = getWithAuth(t, srv.URL+"/readyz", "")
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
}

func TestRequiredAuth_OperationalEndpointsOpen(t *testing.T) {
	chain := &auth.Chain{Strategies: []auth.Strategy{newJWT(t)}, Required: true}
	srv := newTestServer(t, WithAuth(chain, nil), WithMetrics("/internal/metrics"))

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", gohttp.StatusOK},
		{"/readyz", gohttp.StatusOK},
		{"/internal/metrics", gohttp.StatusOK},
		{"/whoami", gohttp.StatusUnauthorized},
		{"/users/search?name=a", gohttp.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := getWithAuth(t, srv.URL+tt.path, "")
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRateLimitedSubject(t *testing.T) {
	strategy := newJWT(t)
	chain := &auth.Chain{Strategies: []auth.Strategy{strategy}}
	srv := newTestServer(t, WithAuth(chain, auth.NewInProcessLimiter(1)))

	token := bearer(t, strategy, auth.Claims{"sub": "alice"})

	resp := getWithAuth(t, srv.URL+"/whoami", token)
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)

	resp = getWithAuth(t, srv.URL+"/whoami", token)
	assert.Equal(t, gohttp.StatusTooManyRequests, resp.StatusCode)

	// Anonymous requests are not counted.
	resp = getWithAuth(t, srv.URL+"/whoami", "")
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
}
