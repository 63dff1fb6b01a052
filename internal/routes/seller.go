package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keyhaven/keyhaven/internal/seller"
)

// RegisterSellerRoutes wires the seller-facing read endpoints.
func RegisterSellerRoutes(r fiber.Router, h *seller.Handler) {
	r.Get("/sellers/:sellerId/balances", h.Balances)
	r.Get("/sellers/:sellerId/orders", h.Orders)
	r.Get("/sellers/:sellerId/payouts", h.Payouts)
	r.Get("/sellers/:sellerId/payouts/:payoutId", h.Payout)
}
