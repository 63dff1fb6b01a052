package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keyhaven/keyhaven/internal/spending"
)

// RegisterWalletRoutes wires buyer wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *spending.Handler) {
	r.Get("/users/:userId/balance", h.Balance)
	r.Post("/users/:userId/spend", h.Spend)
	r.Post("/users/:userId/refund", h.Refund)
	r.Post("/users/:userId/funds", h.AddFunds)
	r.Post("/users/:userId/migrate", h.Migrate)
}
