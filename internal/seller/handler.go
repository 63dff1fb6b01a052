package seller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the seller-facing read endpoints.
type Handler struct {
	agg *Aggregator
}

// NewHandler builds a seller HTTP handler.
func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

type orderFinancialResponse struct {
	ID                string     `json:"id"`
	ListingTitle      string     `json:"listing_title"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	EscrowStatus      string     `json:"escrow_status"`
	EligibilityStatus string     `json:"eligibility_status"`
	HoldReasonCode    string     `json:"hold_reason_code"`
	PayoutStatus      string     `json:"payout_status,omitempty"`
	ReleaseExpectedAt *time.Time `json:"release_expected_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Balances returns the seller's per-currency ledger-derived balances.
func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.agg.Balances(c.UserContext(), c.Params("sellerId"))
	if err != nil {
		return mapSellerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balances": balances})
}

// Orders returns the seller's order financials.
func (h *Handler) Orders(c *fiber.Ctx) error {
	f := OrderFilters{
		EscrowStatus: c.Query("escrow_status"),
		Limit:        queryInt(c, "limit"),
		Offset:       queryInt(c, "offset"),
	}

	orders, err := h.agg.OrderFinancials(c.UserContext(), c.Params("sellerId"), f)
	if err != nil {
		return mapSellerError(err)
	}

	out := make([]orderFinancialResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderFinancialResponse{
			ID:                o.ID,
			ListingTitle:      o.ListingTitle,
			AmountCents:       o.AmountCents,
			Currency:          o.Currency,
			EscrowStatus:      o.EscrowStatus,
			EligibilityStatus: o.EligibilityStatus,
			HoldReasonCode:    o.HoldReasonCode,
			PayoutStatus:      o.PayoutStatus,
			ReleaseExpectedAt: o.ReleaseExpectedAt,
			CreatedAt:         o.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"orders": out})
}

// Payouts returns the seller's payout history.
func (h *Handler) Payouts(c *fiber.Ctx) error {
	f := PayoutFilters{
		Status: c.Query("status"),
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}

	payouts, err := h.agg.Payouts(c.UserContext(), c.Params("sellerId"), f)
	if err != nil {
		return mapSellerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payouts": payouts})
}

// Payout returns one payout owned by the seller.
func (h *Handler) Payout(c *fiber.Ctx) error {
	p, err := h.agg.Payout(c.UserContext(), c.Params("sellerId"), c.Params("payoutId"))
	if err != nil {
		return mapSellerError(err)
	}
	return c.Status(http.StatusOK).JSON(p)
}

func mapSellerError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidSellerID):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPayoutNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func queryInt(c *fiber.Ctx, key string) int {
	v := c.Query(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
