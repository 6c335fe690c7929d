package handler

import (
	"errors"
	"log/slog"
	"net/http"

	playground "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/niharmallik/sagapay/internal/core/saga"
)

type TransferHandler struct {
	Saga     *saga.Service
	Validate *playground.Validate
}

type TransferRequest struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

type TransferResponse struct {
	Status        string `json:"status"`
	TxID          string `json:"tx_id"`
	CurrentStatus string `json:"current_status"`
	StartedAt     int64  `json:"started_at"`
}

// Submit starts a transfer saga. The txId route parameter keys the saga;
// POST /v1/transfers without one gets a server-generated id. The response
// returns immediately; progress is polled through GetStatus.
func (h *TransferHandler) Submit(c *fiber.Ctx) error {
	txID := c.Params("txId")
	if txID == "" {
		txID = uuid.New().String()
	}

	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("invalid transfer body", "tx_id", txID, "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.Saga.Submit(c.Context(), txID, req.From, req.To, req.Amount)
	if err != nil {
		slog.Error("failed to submit transfer", "tx_id", txID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not submit transfer"})
	}

	status := http.StatusAccepted
	if result.Status == saga.SubmitDuplicate {
		status = http.StatusOK
	}

	return c.Status(status).JSON(TransferResponse{
		Status:        string(result.Status),
		TxID:          result.TxID,
		CurrentStatus: string(result.CurrentStatus),
		StartedAt:     result.StartedAt,
	})
}

// GetStatus returns the saga's latest committed state, including history.
func (h *TransferHandler) GetStatus(c *fiber.Ctx) error {
	txID := c.Params("txId")

	state, err := h.Saga.GetStatus(c.Context(), txID)
	if err != nil {
		if errors.Is(err, saga.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "transaction not started"})
		}
		slog.Error("failed to read transfer status", "tx_id", txID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not read transfer status"})
	}

	return c.JSON(state)
}
