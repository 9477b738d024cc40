package router

import (
	"github.com/gin-gonic/gin"

	"github.com/subsync/backend/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers served by the sync service
type Handlers struct {
	Webhook      *handler.WebhookHandler
	AuditLog     *handler.AuditLogHandler
	Subscription *handler.SubscriptionHandler
	Order        *handler.OrderHandler
	System       *handler.SystemHandler
}

// RegisterRoutes adds every endpoint to engine and runs Setup. The admin API is
// only mounted when adminAuth is set; without credentials it returns 404.
func RegisterRoutes(engine *gin.Engine, h Handlers, adminAuth gin.HandlerFunc) *Router {
	var opts []RouterOption
	if adminAuth != nil {
		opts = append(opts, WithAPIMiddleware(adminAuth))
	}
	r := NewRouter(engine, opts...)

	health := NewDomainGroup("health", "/health")
	health.GET("", h.System.Health)
	health.GET("/ready", h.System.Ready)

	webhooks := NewDomainGroup("webhooks", "/webhooks")
	webhooks.POST("/gateway-events", h.Webhook.GatewayEvents)
	webhooks.POST("/commerce-events", h.Webhook.CommerceEvents)

	public := NewDomainGroup("public", "")
	public.GET("/logs", h.AuditLog.ListPublic)

	r.RegisterRoot(health).
		RegisterRoot(webhooks).
		RegisterRoot(public)

	if adminAuth != nil {
		subscriptions := NewDomainGroup("subscriptions", "/subscriptions")
		subscriptions.POST("/:id/cancel", h.Subscription.Cancel)

		orders := NewDomainGroup("orders", "/orders")
		orders.GET("/:id", h.Order.GetByID)

		logs := NewDomainGroup("logs", "/logs")
		logs.GET("", h.AuditLog.ListPage)

		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo)

		r.Register(subscriptions).
			Register(orders).
			Register(logs).
			Register(system)
	}

	r.Setup()
	return r
}
