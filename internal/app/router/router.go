package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/instafly/instafly/internal/app/handlers"
	middlware "github.com/instafly/instafly/internal/app/middleware"
)

func NewAppRouter(uh *handlers.UserHandler,
	oh *handlers.OrdersHandler,
	wh *handlers.WalletHandler,
	ch *handlers.CatalogHandler,
	th *handlers.TrackingHandler,
	wbh *handlers.WebhookHandler,
	ah *handlers.AdminHandler,
	nh *handlers.NotificationsHandler,
	am middlware.AuthMiddleware) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middlware.RequestLogger)
	r.Use(middlware.ResponseLogger)

	// public
	r.Post("/api/user/register", uh.Register)
	r.Post("/api/user/login", uh.Login)
	r.Get("/api/services", ch.GetServices)
	r.Post("/api/coupons/validate", ch.ValidateCoupon)
	r.Get("/api/track/{displayID}", th.TrackOrder)
	r.Get("/api/instagram/{username}", th.GetInstagramProfile)
	r.Post("/api/webhooks/mercadopago", wbh.HandlePaymentWebhook)
	r.Handle("/metrics", promhttp.Handler())

	// authenticated customer
	r.Group(func(r chi.Router) {
		r.Use(am.Authenticate)

		r.Post("/api/user/orders", oh.CreateOrder)
		r.Get("/api/user/orders", oh.GetOrders)
		r.Get("/api/user/orders/{orderUUID}", oh.GetOrder)

		r.Get("/api/user/wallet", wh.GetWallet)
		r.Get("/api/user/wallet/transactions", wh.GetTransactions)
		r.Post("/api/user/wallet/deposit", wh.Deposit)
		r.Get("/api/user/vip", wh.GetVipProgress)
	})

	// admin
	r.Group(func(r chi.Router) {
		r.Use(am.Authenticate)
		r.Use(am.RequireAdmin)

		r.Get("/api/admin/orders", ah.ListOrders)
		r.Put("/api/admin/orders/{orderUUID}/status", ah.UpdateOrderStatus)

		r.Get("/api/admin/services", ah.ListServices)
		r.Post("/api/admin/services", ah.CreateService)
		r.Put("/api/admin/services/{serviceUUID}", ah.UpdateService)
		r.Delete("/api/admin/services/{serviceUUID}", ah.DeleteService)

		r.Get("/api/admin/coupons", ah.ListCoupons)
		r.Post("/api/admin/coupons", ah.CreateCoupon)
		r.Put("/api/admin/coupons/{couponUUID}", ah.UpdateCoupon)
		r.Delete("/api/admin/coupons/{couponUUID}", ah.DeleteCoupon)

		r.Get("/api/admin/affiliates", ah.ListAffiliates)
		r.Post("/api/admin/affiliates", ah.CreateAffiliate)
		r.Get("/api/admin/affiliates/{affiliateUUID}/earnings", ah.GetAffiliateEarnings)
		r.Post("/api/admin/earnings/{earningID}/paid", ah.MarkEarningPaid)

		r.Get("/api/admin/settings", ah.GetSettings)
		r.Put("/api/admin/settings", ah.UpdateSettings)

		r.Get("/api/admin/dripfeeds", ah.ListDripFeeds)

		r.Post("/api/admin/diagnostics", ah.RunDiagnostics)

		r.Get("/api/admin/campaigns", nh.GetCampaigns)
		r.Put("/api/admin/campaigns/{campaign}", nh.UpdateCampaign)
		r.Post("/api/admin/campaigns/{campaign}/test", nh.TestCampaign)
	})
	return r
}
