package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlquote/internal/config"
	"stlquote/internal/domain"
)

type fixedAnalyzer struct{ calls int }

func (f *fixedAnalyzer) Analyze(context.Context, string) (domain.Quote, error) {
	f.calls++
	return domain.Quote{VolumeCM3: 1000, Price: 353}, nil
}

type readyTokens struct{}

func (readyTokens) Ready() bool            { return true }
func (readyTokens) Validate(t string) bool { return t == "secret" }
func (readyTokens) RateLimit(string) int   { return 0 }

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}

func analyzeReq(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"fileUrl":"https://example.com/a.stl"}`))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return req
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	svc := &fixedAnalyzer{}
	app := New(Deps{Config: config.Default(), Service: svc})

	resp, err := app.Test(analyzeReq(""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, 1000.0, body["volume_cm3"])
	assert.Equal(t, 353.0, body["price"])
	assert.Equal(t, 1, svc.calls)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
	assert.Equal(t, "Not Found", decode(t, resp)["detail"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ops/monitor", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNew_GetOnAnalyzeIsNotRouted(t *testing.T) {
	app := New(Deps{Config: config.Default(), Service: &fixedAnalyzer{}})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/analyze", nil))
	require.NoError(t, err)
	assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
}

func TestNew_BodyLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.BodyLimitBytes = 16
	app := New(Deps{Config: cfg, Service: &fixedAnalyzer{}})

	resp, err := app.Test(analyzeReq(""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestNew_RequiredAuth(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true
	cfg.Auth.Required = true
	svc := &fixedAnalyzer{}
	app := New(Deps{Config: cfg, Service: svc, Tokens: readyTokens{}})

	resp, err := app.Test(analyzeReq(""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(analyzeReq("secret"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, svc.calls)
}
