package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/channel-token-service/app"
	"github.com/upb/channel-token-service/config"
	"github.com/upb/channel-token-service/identity"
	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services/token"
	"github.com/upb/channel-token-service/utils"
	"go.uber.org/zap/zaptest"
)

const hmacSecret = "caller-secret"

func testConfig(requireAuth bool) *config.Config {
	cfg := &config.Config{
		Environment: "test",
		Token:       config.TokenConfig{TTL: time.Hour, IssueMessagingToken: true},
		Auth: config.AuthConfig{
			RequireAuth: requireAuth,
			Mode:        config.AuthModeHMAC,
			HMACSecret:  hmacSecret,
		},
		Observability: config.ObservabilityConfig{LogLevel: "error"},
	}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Server.AllowedOrigins = []string{"https://*"}
	return cfg
}

func newTestServer(t *testing.T, requireAuth bool) *httptest.Server {
	t.Helper()
	t.Setenv(secrets.EnvAppIDProd, "prod-id")
	t.Setenv(secrets.EnvAppCertProd, "prod-cert")
	t.Setenv(secrets.EnvAppIDDev, "dev-id")
	t.Setenv(secrets.EnvAppCertDev, "")

	deps, err := app.NewDependencies(context.Background(), testConfig(requireAuth), zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(func() {
		ts.Close()
		_ = deps.Close(context.Background())
	})
	return ts
}

func callerToken(t *testing.T) string {
	t.Helper()
	claims := &identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(hmacSecret))
	require.NoError(t, err)
	return signed
}

func post(t *testing.T, url, body, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	ready, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, false)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "client-req-7")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "client-req-7", resp.Header.Get("X-Request-ID"))

	generated := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","env":"prod"}`, "")
	assert.NotEmpty(t, generated.Header.Get("X-Request-ID"))
}

func TestIssuancesRouteNeedsAuditLog(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/v1/issuances")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTokenEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	t.Run("rest issues tokens", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","uid":42,"role":"publisher","env":"prod"}`, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var set token.IssuedTokenSet
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
		assert.NotEmpty(t, set.RTCToken)
		assert.NotEmpty(t, set.RTMToken)
		assert.Greater(t, set.ExpiresAt, time.Now().Unix())
	})

	t.Run("rest and callable agree", func(t *testing.T) {
		restResp := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","uid":"7","env":"prod"}`, "")
		callResp := post(t, ts.URL+"/callable/generateToken", `{"data":{"channelName":"room1","uid":"7","env":"prod"}}`, "")
		require.Equal(t, http.StatusOK, restResp.StatusCode)
		require.Equal(t, http.StatusOK, callResp.StatusCode)

		var rest token.IssuedTokenSet
		var call struct {
			Result token.IssuedTokenSet `json:"result"`
		}
		require.NoError(t, json.NewDecoder(restResp.Body).Decode(&rest))
		require.NoError(t, json.NewDecoder(callResp.Body).Decode(&call))

		// requests may straddle a second boundary
		if rest.ExpiresAt == call.Result.ExpiresAt {
			assert.Equal(t, rest, call.Result)
		}
	})

	t.Run("invalid argument", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"  ","env":"dev"}`, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body utils.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "INVALID_ARGUMENT", body.Error.Status)
		assert.Equal(t, "channelName required", body.Error.Message)
	})

	t.Run("dev credentials missing", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","env":"dev"}`, "")
		assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

		callable := post(t, ts.URL+"/callable/generateToken", `{"data":{"channelName":"room1","env":"dev"}}`, "")
		assert.Equal(t, http.StatusBadRequest, callable.StatusCode)
	})

	t.Run("invalid bearer token", func(t *testing.T) {
		resp := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","env":"prod"}`, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestTokenEndpoints_RequireAuth(t *testing.T) {
	ts := newTestServer(t, true)

	resp := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","env":"prod"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "UNAUTHENTICATED", body.Error.Status)

	authed := post(t, ts.URL+"/api/v1/tokens", `{"channelName":"room1","env":"prod"}`, callerToken(t))
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}
