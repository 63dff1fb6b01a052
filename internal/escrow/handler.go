package escrow

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/keyhaven/keyhaven/internal/notification"
)

// Handler exposes the escrow lifecycle transitions. These endpoints are
// called by the order pipeline and admin tooling, not by sellers directly.
type Handler struct {
	service  *Service
	notifier notification.Notifier
}

// NewHandler builds an escrow HTTP handler.
func NewHandler(service *Service, notifier notification.Notifier) *Handler {
	return &Handler{service: service, notifier: notifier}
}

type lockRequest struct {
	SellerID    string `json:"seller_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type releaseRequest struct {
	SellerID string `json:"seller_id"`
	Currency string `json:"currency"`
}

type reverseRequest struct {
	SellerID    string `json:"seller_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type payoutRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

// Lock holds a seller's earnings for an order at settlement.
func (h *Handler) Lock(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	var req lockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.Lock(c.UserContext(), req.SellerID, orderID, req.AmountCents, currencyOr(req.Currency)); err != nil {
		return mapEscrowError(err)
	}
	return c.SendStatus(http.StatusCreated)
}

// Release moves an order's remaining locked funds to available.
func (h *Handler) Release(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	released, err := h.service.Release(c.UserContext(), req.SellerID, orderID, currencyOr(req.Currency))
	if err != nil {
		return mapEscrowError(err)
	}

	if h.notifier != nil {
		_ = h.notifier.Send(c.UserContext(), notification.Message{
			Kind:        notification.KindEscrowRelease,
			Destination: req.SellerID,
			Body:        fmt.Sprintf("Escrow of %d cents released for order %s", released, orderID),
		})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"order_id":       orderID,
		"released_cents": released,
	})
}

// Reverse refunds part or all of a held order back to the buyer side.
func (h *Handler) Reverse(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	var req reverseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.Reverse(c.UserContext(), req.SellerID, orderID, req.AmountCents, currencyOr(req.Currency)); err != nil {
		return mapEscrowError(err)
	}
	return c.SendStatus(http.StatusCreated)
}

// ReservePayout debits the seller's available balance while a payout is in flight.
func (h *Handler) ReservePayout(c *fiber.Ctx) error {
	sellerID := c.Params("sellerId")
	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.ReservePayout(c.UserContext(), sellerID, req.AmountCents, currencyOr(req.Currency), req.Reference); err != nil {
		return mapEscrowError(err)
	}
	return c.SendStatus(http.StatusCreated)
}

// CompletePayout debits the seller's available balance for a finished payout.
func (h *Handler) CompletePayout(c *fiber.Ctx) error {
	sellerID := c.Params("sellerId")
	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.Payout(c.UserContext(), sellerID, req.AmountCents, currencyOr(req.Currency), req.Reference); err != nil {
		return mapEscrowError(err)
	}
	return c.SendStatus(http.StatusCreated)
}

// FailPayout returns a reserved amount after a payout failed downstream.
func (h *Handler) FailPayout(c *fiber.Ctx) error {
	sellerID := c.Params("sellerId")
	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.FailPayout(c.UserContext(), sellerID, req.AmountCents, currencyOr(req.Currency), req.Reference); err != nil {
		return mapEscrowError(err)
	}
	return c.SendStatus(http.StatusCreated)
}

func mapEscrowError(err error) error {
	switch {
	case errors.Is(err, ErrNothingLocked), errors.Is(err, ErrExceedsLocked), errors.Is(err, ErrInsufficientAvailable):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}

func currencyOr(currency string) string {
	if currency == "" {
		return "USD"
	}
	return currency
}
