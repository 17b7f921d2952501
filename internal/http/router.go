package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig, products *ProductHandler, carts *CartHandler, orders *OrdersHandler) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodySizeMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{product_id}", products.Get)

		r.Group(func(r chi.Router) {
			r.Use(UserIDMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", carts.GetCart)
				r.Delete("/", carts.ClearCart)
				r.Get("/count", carts.GetItemCount)
				r.Post("/items", carts.AddItem)
				r.Put("/items/{product_id}", carts.UpdateQuantity)
				r.Delete("/items/{product_id}", carts.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orders.CreateOrder)
				r.Get("/", orders.ListOrders)
				r.Get("/recent", orders.RecentOrders)
				r.Get("/count", orders.CountOrders)
				r.Get("/number/{order_number}", orders.GetOrderByNumber)
				r.Get("/{order_id}", orders.GetOrder)
				r.Post("/{order_id}/cancel", orders.CancelOrder)
			})

			r.Patch("/admin/orders/{order_id}/status", orders.UpdateStatus)
		})
	})

	return r
}
