package spending

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/keyhaven/keyhaven/internal/bridge"
	"github.com/keyhaven/keyhaven/internal/userlock"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type spendRequest struct {
	AmountCents int64  `json:"amount_cents"`
	OrderID     string `json:"order_id"`
	ListingID   string `json:"listing_id"`
}

type refundRequest struct {
	AmountCents int64             `json:"amount_cents"`
	OrderID     string            `json:"order_id"`
	ListingID   string            `json:"listing_id"`
	Original    *bridge.Breakdown `json:"original_breakdown"`
}

type fundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	OrderID     string `json:"order_id"`
}

// Balance returns the user's combined purchasing power.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID := c.Params("userId")
	combined, err := h.service.GetCombinedBalance(c.UserContext(), userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":        combined.UserID,
		"legacy_cents":   combined.LegacyCents,
		"platform_cents": combined.PlatformCents,
		"total_cents":    combined.TotalCents,
		"currency":       combined.Currency,
		"has_legacy":     combined.HasLegacy,
		"has_platform":   combined.HasPlatform,
	})
}

// Spend debits the user's wallets and returns the split for the caller to
// persist on the order.
func (h *Handler) Spend(c *fiber.Ctx) error {
	userID := c.Params("userId")
	var req spendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Spend(c.UserContext(), userID, req.AmountCents, bridge.Metadata{
		OrderID:   req.OrderID,
		ListingID: req.ListingID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

// Refund credits a spend back, proportionally when the original breakdown is supplied.
func (h *Handler) Refund(c *fiber.Ctx) error {
	userID := c.Params("userId")
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Refund(c.UserContext(), userID, req.AmountCents, req.Original, bridge.Metadata{
		OrderID:   req.OrderID,
		ListingID: req.ListingID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

// AddFunds credits the platform wallet after a confirmed external payment.
func (h *Handler) AddFunds(c *fiber.Ctx) error {
	userID := c.Params("userId")
	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.AddFunds(c.UserContext(), userID, req.AmountCents, bridge.Metadata{OrderID: req.OrderID}); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Migrate moves the user's legacy balance into the platform wallet. Safe to
// retry; a second call reports already_migrated.
func (h *Handler) Migrate(c *fiber.Ctx) error {
	userID := c.Params("userId")
	res, err := h.service.MigrateUser(c.UserContext(), userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":             res.Status,
		"amount_cents":       res.AmountCents,
		"platform_wallet_id": res.PlatformWalID,
	})
}

func mapError(err error) error {
	var insufficient *bridge.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		return fiber.NewError(http.StatusPaymentRequired, insufficient.Error())
	case errors.Is(err, bridge.ErrInvalidUserID), errors.Is(err, bridge.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, bridge.ErrSpendingDisabled), errors.Is(err, bridge.ErrLegacySpendingDisabled):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, userlock.ErrNotAcquired):
		return fiber.NewError(http.StatusConflict, "another operation on this wallet is in progress")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
