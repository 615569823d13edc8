package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/pkg/logger"
	"curate-pipeline/internal/pkg/serverutils"
	"curate-pipeline/internal/repository/memory"
	"curate-pipeline/internal/runs"
	"curate-pipeline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app     *fiber.App
	store   *memory.DocumentStore
	tracker *runs.Tracker
}

func newTestApp(t *testing.T, secret string) *testApp {
	t.Helper()
	store := memory.NewDocumentStore()
	tracker := runs.NewTracker(memory.NewRunRepository())

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	guard := serverutils.JwtMiddleware(secret)

	health := func() dto.HealthResponse { return dto.HealthResponse{Status: "ok", Environment: "test"} }
	NewSystemController(health, nil).RegisterRoutes(api, guard)
	NewIngestController(service.NewIngestService(store, logger.NewNopLogger())).RegisterRoutes(api, guard)
	NewRunController(service.NewRunService(tracker)).RegisterRoutes(api, guard)

	return &testApp{app: app, store: store, tracker: tracker}
}

func (a *testApp) do(t *testing.T, method, path, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, "")
	code, body := a.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestSubmitItemEndpoint(t *testing.T) {
	a := newTestApp(t, "")

	code, _ := a.do(t, http.MethodPost, "/api/items", `{"url":"https://example.com/a"}`, nil)
	assert.Equal(t, http.StatusConflict, code, "no open edition yet")

	code, _ = a.do(t, http.MethodPost, "/api/editions", "", nil)
	require.Equal(t, http.StatusCreated, code)

	code, body := a.do(t, http.MethodPost, "/api/items", `{"url":"https://example.com/a"}`, nil)
	require.Equal(t, http.StatusCreated, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "submitted", data["status"])

	code, _ = a.do(t, http.MethodGet, "/api/items/"+data["id"].(string), "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestSubmitItemValidation(t *testing.T) {
	a := newTestApp(t, "")

	code, _ := a.do(t, http.MethodPost, "/api/items", `{"url":"not a url"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/api/items", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestShowMissingItem(t *testing.T) {
	a := newTestApp(t, "")

	code, _ := a.do(t, http.MethodGet, "/api/items/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodGet, "/api/items/nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPublishFlowEndpoints(t *testing.T) {
	a := newTestApp(t, "")

	code, body := a.do(t, http.MethodPost, "/api/editions", "", nil)
	require.Equal(t, http.StatusCreated, code)
	id := body["data"].(map[string]any)["id"].(string)

	code, body = a.do(t, http.MethodPost, "/api/editions/"+id+"/publish", "", nil)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, entity.EditionStatusPublishRequested, body["data"].(map[string]any)["pipeline_status"])

	code, _ = a.do(t, http.MethodPost, "/api/feedback", `{"edition_id":"`+id+`","section":"intro","comment":"shorter"}`, nil)
	assert.Equal(t, http.StatusCreated, code)
}

func TestResubmitConflict(t *testing.T) {
	a := newTestApp(t, "")
	item := &entity.Item{URL: "https://example.com/a"}
	require.NoError(t, a.store.CreateItem(context.Background(), item))

	code, _ := a.do(t, http.MethodPost, "/api/items/"+item.Id.String()+"/resubmit", "", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestRunsEndpoints(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()
	trigger := uuid.New()

	runId, err := a.tracker.StartRun(ctx, entity.StageFetch, trigger, 1, map[string]any{"url": "x"})
	require.NoError(t, err)
	require.NoError(t, a.tracker.CompleteRun(ctx, runId, map[string]any{"title": "t"}, &entity.Usage{InputTokens: 2, OutputTokens: 3}))

	code, body := a.do(t, http.MethodGet, "/api/runs?trigger_id="+trigger.String(), "", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["data"].([]any)
	require.Len(t, list, 1)
	run := list[0].(map[string]any)
	assert.Equal(t, "completed", run["status"])
	assert.EqualValues(t, 5, run["usage"].(map[string]any)["total_tokens"])

	code, _ = a.do(t, http.MethodGet, "/api/runs?trigger_id=bad", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(t, http.MethodGet, "/api/runs/recent?limit=10", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"].([]any), 1)
}

func TestGuardedRoutesNeedToken(t *testing.T) {
	secret := "test-secret"
	a := newTestApp(t, secret)

	code, _ := a.do(t, http.MethodPost, "/api/editions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	code, _ = a.do(t, http.MethodPost, "/api/editions", "", map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusCreated, code)

	code, _ = a.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code, "health stays open")
}

func TestRevisionEndpoints(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()

	edition := &entity.Edition{Status: entity.EditionStatusDrafting}
	require.NoError(t, a.store.CreateEdition(ctx, edition))
	current, _ := a.store.GetEdition(ctx, edition.Id)
	current.Content["intro"] = "first"
	first := &entity.Revision{Source: entity.RevisionSourceDraft}
	require.NoError(t, a.store.Apply(ctx, &entity.ChangeSet{Edition: current, Revision: first}))
	current.Content["intro"] = "second"
	require.NoError(t, a.store.Apply(ctx, &entity.ChangeSet{Edition: current, Revision: &entity.Revision{Source: entity.RevisionSourceEdit}}))

	base := "/api/editions/" + edition.Id.String()
	code, body := a.do(t, http.MethodGet, base+"/revisions", "", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["data"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "changed", list[1].(map[string]any)["sections"].(map[string]any)["intro"])

	code, body = a.do(t, http.MethodPost, base+"/revert/"+first.Id.String(), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "revert", body["data"].(map[string]any)["source"])

	code, _ = a.do(t, http.MethodPost, base+"/revert/bad", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodDelete, base, "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
