package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/cache"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/flags"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/session"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIAddr = ":8091"
	testAPIKey  = "test-api-key-integration"
	testBaseURL = "http://localhost:8091"
)

// setupIntegrationTest runs the real server against Redis DB 2 with a fake
// venue. Transitions flow through the recorder into Redis.
func setupIntegrationTest(t *testing.T) (*redis.Client, *fakeExecutor, func()) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}
	_ = redisClient.FlushDB(ctx).Err()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	execCache := cache.NewRedisCacheFromClient(redisClient, logger)
	flagStore, err := flags.NewStore(redisClient, logger)
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(context.Background())
	recorder := storage.NewRecorder(execCache, nil, logger)
	go recorder.Run(runCtx)

	pricer := quote.PricerFunc(func(context.Context, quote.PricingRequest) (quote.Raw, error) {
		return quote.Raw{"outAmount": "72000000", "otherAmountThreshold": "71640000"}, nil
	})
	quotes, err := quote.NewService(quote.ServiceConfig{Pricer: pricer, Logger: logger})
	require.NoError(t, err)

	exec := &fakeExecutor{resp: execution.ExecuteResponse{Signature: "abc123", Status: "Success", ExecutionTime: "412ms"}}
	sessions, err := session.NewRegistry(session.Config{
		Factory: func(id string) (*execution.Machine, error) {
			m, err := execution.NewMachine(execution.Config{ID: id, Quoter: quotes, Executor: exec, Logger: logger})
			if err != nil {
				return nil, err
			}
			m.OnTransition(recorder.Observe)
			return m, nil
		},
		Logger: logger,
	})
	require.NoError(t, err)

	srv, err := NewServer(ServerDeps{
		Handlers: &Handlers{
			Quotes:   quotes,
			Tokens:   quotes.Tokens(),
			Sessions: sessions,
			Cache:    execCache,
			Flags:    flagStore,
			DevMode:  true,
			Logger:   logger,
		},
		Config: ServerConfig{Addr: testAPIAddr, DevMode: true, APIKey: testAPIKey},
	})
	require.NoError(t, err)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			t.Logf("Server error: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sessions.CloseAll()
		stop()
		_ = srv.Shutdown(ctx)
		_ = redisClient.FlushDB(ctx).Err()
		_ = redisClient.Close()
	}

	return redisClient, exec, cleanup
}

func makeRequest(t *testing.T, method, url string, body any, expectedStatus int) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, expectedStatus, resp.StatusCode, "Expected status %d, got %d", expectedStatus, resp.StatusCode)

	return resp
}

func TestIntegration_SessionOutcomeIsRecorded(t *testing.T) {
	redisClient, exec, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/sessions", nil, http.StatusCreated)
	var created SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	base := testBaseURL + "/v1/sessions/" + created.ID

	resp = makeRequest(t, http.MethodPost, base+"/quote", solToUSDC(0.5), http.StatusOK)
	resp.Body.Close()
	resp = makeRequest(t, http.MethodPost, base+"/confirm", nil, http.StatusOK)
	resp.Body.Close()
	resp = makeRequest(t, http.MethodPost, base+"/submit", nil, http.StatusOK)
	var out ExecutionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, "abc123", out.Outcome.Signature)
	assert.Equal(t, 1, exec.Calls())

	// The recorder writes asynchronously
	require.Eventually(t, func() bool {
		n, err := redisClient.LLen(context.Background(), "executions:recent").Result()
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)

	resp = makeRequest(t, http.MethodGet, testBaseURL+"/v1/executions/recent?limit=5", nil, http.StatusOK)
	defer resp.Body.Close()

	var recent struct {
		Items []*models.ExecutionRecord `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recent))
	require.Len(t, recent.Items, 1)
	assert.Equal(t, created.ID, recent.Items[0].SessionID)
	assert.Equal(t, "success", recent.Items[0].Outcome)
	assert.Equal(t, "abc123", recent.Items[0].Signature)
	assert.Equal(t, uint64(500_000_000), recent.Items[0].AmountAtomic)
}

func TestIntegration_SubmitGateFromRedis(t *testing.T) {
	_, exec, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodPut, testBaseURL+"/v1/flags/"+flags.KeySubmit, map[string]any{"value": false}, http.StatusOK)
	resp.Body.Close()

	resp = makeRequest(t, http.MethodPost, testBaseURL+"/v1/sessions", nil, http.StatusCreated)
	var created SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	base := testBaseURL + "/v1/sessions/" + created.ID

	resp = makeRequest(t, http.MethodPost, base+"/quote", solToUSDC(0.5), http.StatusOK)
	resp.Body.Close()
	resp = makeRequest(t, http.MethodPost, base+"/confirm", nil, http.StatusOK)
	resp.Body.Close()
	resp = makeRequest(t, http.MethodPost, base+"/submit", nil, http.StatusForbidden)
	resp.Body.Close()
	assert.Zero(t, exec.Calls())
}

func TestIntegration_FlagsCRUD(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	upsertPayload := map[string]any{"key": "test.flag", "value": true}
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/flags", upsertPayload, http.StatusOK)
	var upsertResponse flags.Flag
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&upsertResponse))
	resp.Body.Close()
	assert.Equal(t, "test.flag", upsertResponse.Key)
	assert.True(t, upsertResponse.Value)
	assert.NotZero(t, upsertResponse.UpdatedAt)

	resp = makeRequest(t, http.MethodGet, testBaseURL+"/v1/flags", nil, http.StatusOK)
	var listResponse struct {
		Items []*flags.Flag `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listResponse))
	resp.Body.Close()
	assert.Len(t, listResponse.Items, 1)

	resp = makeRequest(t, http.MethodDelete, testBaseURL+"/v1/flags/test.flag", nil, http.StatusNoContent)
	resp.Body.Close()
	resp = makeRequest(t, http.MethodGet, testBaseURL+"/v1/flags/test.flag", nil, http.StatusNotFound)
	resp.Body.Close()
}

func TestIntegration_Authentication(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(http.MethodGet, testBaseURL+"/v1/health", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, testBaseURL+"/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "invalid-key")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
