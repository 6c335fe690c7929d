package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	playground "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/niharmallik/sagapay/internal/core/ledger"
)

type AccountHandler struct {
	Ledger   *ledger.Service
	Validate *playground.Validate
}

type CreateAccountRequest struct {
	InitialBalance int64 `json:"initial_balance" validate:"gte=0"`
}

// CreateAccount opens an account with an initial balance.
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	id := c.Params("id")

	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.Ledger.Create(c.Context(), id, req.InitialBalance); err != nil {
		if errors.Is(err, ledger.ErrAlreadyExists) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		slog.Error("failed to create account", "account", id, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not create account"})
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":      id,
		"balance": req.InitialBalance,
	})
}

// GetAccount returns the current balance.
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	id := c.Params("id")

	balance, err := h.Ledger.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		slog.Error("failed to read account", "account", id, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not read account"})
	}

	return c.JSON(fiber.Map{
		"id":      id,
		"balance": balance,
	})
}

// VerifyFunds reports whether the account covers the requested amount. An
// unknown account simply reports false.
func (h *AccountHandler) VerifyFunds(c *fiber.Ctx) error {
	id := c.Params("id")

	amount, err := strconv.ParseInt(c.Params("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "amount must be a positive integer"})
	}

	sufficient, err := h.Ledger.VerifyFunds(c.Context(), id, amount)
	if err != nil {
		slog.Error("failed to verify funds", "account", id, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "could not verify funds"})
	}

	return c.JSON(fiber.Map{
		"id":         id,
		"amount":     amount,
		"sufficient": sufficient,
	})
}
