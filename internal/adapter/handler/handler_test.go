package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niharmallik/sagapay/internal/adapter/handler"
	"github.com/niharmallik/sagapay/internal/adapter/storage"
	"github.com/niharmallik/sagapay/internal/core/decision"
	"github.com/niharmallik/sagapay/internal/core/domain"
	"github.com/niharmallik/sagapay/internal/core/ledger"
	"github.com/niharmallik/sagapay/internal/core/saga"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	accounts := ledger.NewService(storage.NewMemoryEventStore())
	orchestrator := saga.New(
		storage.NewMemorySagaStore(),
		decision.New(accounts, nil),
		saga.Config{SagaTimeout: 5 * time.Second, StepTimeout: time.Second},
	)

	validate := playground.New()
	accountHandler := &handler.AccountHandler{Ledger: accounts, Validate: validate}
	transferHandler := &handler.TransferHandler{Saga: orchestrator, Validate: validate}

	app := fiber.New()
	api := app.Group("/v1")
	api.Post("/accounts/:id", accountHandler.CreateAccount)
	api.Get("/accounts/:id", accountHandler.GetAccount)
	api.Get("/accounts/:id/verify-funds/:amount", accountHandler.VerifyFunds)
	api.Post("/transfers/:txId", transferHandler.Submit)
	api.Get("/transfers/:txId", transferHandler.GetStatus)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestAccountLifecycle(t *testing.T) {
	app := newApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/accounts/X", `{"initial_balance": 100}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(100), body["balance"])

	resp, _ = doJSON(t, app, http.MethodPost, "/v1/accounts/X", `{"initial_balance": 50}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/v1/accounts/X", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(100), body["balance"])

	resp, _ = doJSON(t, app, http.MethodGet, "/v1/accounts/ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAccountRejectsNegativeBalance(t *testing.T) {
	app := newApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/accounts/X", `{"initial_balance": -1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyFundsEndpoint(t *testing.T) {
	app := newApp(t)
	doJSON(t, app, http.MethodPost, "/v1/accounts/X", `{"initial_balance": 100}`)

	resp, body := doJSON(t, app, http.MethodGet, "/v1/accounts/X/verify-funds/100", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["sufficient"])

	resp, body = doJSON(t, app, http.MethodGet, "/v1/accounts/X/verify-funds/101", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["sufficient"])

	resp, _ = doJSON(t, app, http.MethodGet, "/v1/accounts/X/verify-funds/zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitTransferValidation(t *testing.T) {
	app := newApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/transfers/tx-1", `{"from": "X", "to": "Y", "amount": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/v1/transfers/tx-1", `{"to": "Y", "amount": 10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/v1/transfers/tx-1", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitAndPollTransfer(t *testing.T) {
	app := newApp(t)
	doJSON(t, app, http.MethodPost, "/v1/accounts/X", `{"initial_balance": 100}`)
	doJSON(t, app, http.MethodPost, "/v1/accounts/Y", `{"initial_balance": 100}`)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/transfers/tx-1", `{"from": "X", "to": "Y", "amount": 10}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, string(saga.SubmitReceived), body["status"])
	assert.Equal(t, "tx-1", body["tx_id"])

	require.Eventually(t, func() bool {
		resp, body := doJSON(t, app, http.MethodGet, "/v1/transfers/tx-1", "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return body["status"] == string(domain.StatusTransactionCompleted)
	}, 3*time.Second, 20*time.Millisecond)

	resp, body = doJSON(t, app, http.MethodPost, "/v1/transfers/tx-1", `{"from": "X", "to": "Y", "amount": 10}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(saga.SubmitDuplicate), body["status"])
	assert.Equal(t, string(domain.StatusTransactionCompleted), body["current_status"])

	_, account := doJSON(t, app, http.MethodGet, "/v1/accounts/X", "")
	assert.Equal(t, float64(90), account["balance"])
}

func TestGetStatusUnknownTransfer(t *testing.T) {
	app := newApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/v1/transfers/never-started", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "transaction not started", body["error"])
}
