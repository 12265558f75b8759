// Package billingcore предоставляет маршруты для основного приложения.
package billingcore

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/billing/checkoutcreate"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/billing/portalcreate"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/billing/trialstart"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/coupon/couponcreate"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/coupon/coupondelete"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/coupon/couponredeem"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/subscription/health"
	"github.com/magabrotheeeer/billing-core/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/billing-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billing-core/internal/lib/jwt"
	checkoutservice "github.com/magabrotheeeer/billing-core/internal/services/checkout"
	couponservice "github.com/magabrotheeeer/billing-core/internal/services/coupon"
	reconcilerservice "github.com/magabrotheeeer/billing-core/internal/services/reconciler"
	subscriptionservice "github.com/magabrotheeeer/billing-core/internal/services/subscription"
	trialservice "github.com/magabrotheeeer/billing-core/internal/services/trial"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker, gateway billing.Gateway,
	checkoutSvc *checkoutservice.Service, trialSvc *trialservice.Service,
	couponSvc *couponservice.Service, reconcilerSvc *reconcilerservice.Service,
	subscriptionSvc *subscriptionservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/billing/checkout", checkoutcreate.New(logger, checkoutSvc).ServeHTTP)
			r.Post("/billing/portal", portalcreate.New(logger, checkoutSvc).ServeHTTP)
			r.Post("/billing/trial", trialstart.New(logger, trialSvc).ServeHTTP)
			r.Post("/coupons/redeem", couponredeem.New(logger, couponSvc).ServeHTTP)
			r.Get("/subscription", read.New(logger, subscriptionSvc).ServeHTTP)

			// Административные конечные точки
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Post("/coupons", couponcreate.New(logger, couponSvc).ServeHTTP)
				r.Delete("/coupons/{id}", coupondelete.New(logger, couponSvc).ServeHTTP)
			})
		})

		// Webhook endpoint (без аутентификации, подпись проверяет провайдер)
		r.Post("/billing/webhook", webhook.New(logger, gateway, reconcilerSvc).ServeHTTP)

		r.Get("/health", health.New(logger).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
