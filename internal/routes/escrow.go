package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keyhaven/keyhaven/internal/escrow"
)

// RegisterEscrowRoutes wires the escrow lifecycle endpoints used by the
// order pipeline and admin tooling.
func RegisterEscrowRoutes(r fiber.Router, h *escrow.Handler) {
	r.Post("/orders/:orderId/escrow/lock", h.Lock)
	r.Post("/orders/:orderId/escrow/release", h.Release)
	r.Post("/orders/:orderId/escrow/reverse", h.Reverse)
	r.Post("/sellers/:sellerId/payouts/reserve", h.ReservePayout)
	r.Post("/sellers/:sellerId/payouts/complete", h.CompletePayout)
	r.Post("/sellers/:sellerId/payouts/fail", h.FailPayout)
}
