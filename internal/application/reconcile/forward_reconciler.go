package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// Downstream operation names
const (
	opUpdateOrder            = "update_order"
	opUpdateSubscription     = "update_subscription"
	opListSubscriptionOrders = "list_subscription_orders"
	opGetSubscription        = "get_subscription"
	opCancelSubscription     = "cancel_subscription"
	opPauseSubscription      = "pause_subscription"
	opResumeSubscription     = "resume_subscription"
)

// ForwardResult describes what the forward reconciler did with one event
type ForwardResult struct {
	// Handled is false when the event took the no-op path
	Handled bool
	// Reason explains a no-op
	Reason string
	// Calls holds one result per downstream call, in call order
	Calls reconcile.Results
}

func skipped(reason string) ForwardResult {
	return ForwardResult{Reason: reason}
}

// ForwardReconciler maps gateway billing events onto commerce order and
// subscription status writes. Downstream failures are logged and the
// remaining calls for the event still run.
type ForwardReconciler struct {
	commerce reconcile.CommercePlatform
	locator  *RenewalOrderLocator
	audit    reconcile.AuditRecorder
	metrics  Metrics
	logger   *zap.Logger
}

// ForwardReconcilerConfig contains dependencies for ForwardReconciler
type ForwardReconcilerConfig struct {
	Commerce reconcile.CommercePlatform
	Locator  *RenewalOrderLocator
	Audit    reconcile.AuditRecorder
	Metrics  Metrics
	Logger   *zap.Logger
}

// NewForwardReconciler creates a new ForwardReconciler
func NewForwardReconciler(cfg ForwardReconcilerConfig) *ForwardReconciler {
	locator := cfg.Locator
	if locator == nil {
		locator = NewRenewalOrderLocator(cfg.Commerce)
	}
	return &ForwardReconciler{
		commerce: cfg.Commerce,
		locator:  locator,
		audit:    cfg.Audit,
		metrics:  metricsOrNoop(cfg.Metrics),
		logger:   cfg.Logger,
	}
}

// Handle applies the event. It never returns an error; failures are
// reported per call in the result.
func (r *ForwardReconciler) Handle(ctx context.Context, event *reconcile.BillingEvent) ForwardResult {
	log := r.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	var result ForwardResult
	switch event.Type {
	case reconcile.EventCheckoutSessionCompleted:
		result = r.handleCheckoutCompleted(ctx, event, log)
	case reconcile.EventPaymentIntentSucceeded:
		result = r.handlePaymentSucceeded(ctx, event, log)
	case reconcile.EventInvoicePaymentSucceeded, reconcile.EventInvoicePaid:
		result = r.handleInvoicePaid(ctx, event, log)
	case reconcile.EventInvoicePaymentFailed:
		result = r.handleInvoicePaymentFailed(ctx, event, log)
	case reconcile.EventCustomerSubscriptionUpdated:
		result = r.handleSubscriptionUpdated(ctx, event, log)
	case reconcile.EventCustomerSubscriptionDeleted:
		result = r.handleSubscriptionDeleted(ctx, event, log)
	default:
		log.Debug("Unhandled gateway event type")
		return skipped(reconcile.ErrUnknownEventType.Error())
	}

	if !result.Handled {
		log.Info("Gateway event skipped", zap.String("reason", result.Reason))
		return result
	}

	if failed := result.Calls.Failed(); len(failed) > 0 {
		log.Warn("Gateway event processed with downstream failures",
			zap.Int("calls", len(result.Calls)),
			zap.Int("failed", len(failed)))
	} else {
		log.Info("Gateway event processed successfully", zap.Int("calls", len(result.Calls)))
	}
	return result
}

// handleCheckoutCompleted handles checkout.session.completed events
func (r *ForwardReconciler) handleCheckoutCompleted(ctx context.Context, event *reconcile.BillingEvent, log *zap.Logger) ForwardResult {
	var session CheckoutSessionPayload
	if err := decodeObject(event, &session); err != nil {
		return skipped(err.Error())
	}

	orderID := session.Metadata[metaOrderID]
	if orderID == "" {
		orderID = session.ClientReferenceID
	}
	if missing := validateKeys(checkoutKeys{OrderID: orderID}); missing != nil {
		return skipped(missingKeys(missing))
	}

	log.Info("Handling checkout completed",
		zap.String("session_id", session.ID),
		zap.String("order_id", orderID))

	result := ForwardResult{Handled: true}
	result.Calls = append(result.Calls, r.updateOrder(ctx, log, event, orderID,
		reconcile.OrderStatusProcessing, reconcile.AuditActionOrderUpdated, nil))

	link := subscriptionLinkKeys{
		CommerceSubscriptionID: session.Metadata[metaSubscriptionID],
		GatewaySubscriptionID:  string(session.Subscription),
	}
	if validateKeys(link) == nil {
		result.Calls = append(result.Calls, r.updateSubscription(ctx, log, event, link.CommerceSubscriptionID,
			reconcile.WithGatewaySubscriptionID(reconcile.SubscriptionStatusActive, link.GatewaySubscriptionID)))
	}
	return result
}

// handlePaymentSucceeded handles payment_intent.succeeded events
func (r *ForwardReconciler) handlePaymentSucceeded(ctx context.Context, event *reconcile.BillingEvent, log *zap.Logger) ForwardResult {
	var intent PaymentIntentPayload
	if err := decodeObject(event, &intent); err != nil {
		return skipped(err.Error())
	}

	keys := orderKeys{OrderID: intent.Metadata[metaOrderID]}
	if missing := validateKeys(keys); missing != nil {
		return skipped(missingKeys(missing))
	}

	log.Info("Handling payment succeeded",
		zap.String("payment_intent_id", intent.ID),
		zap.String("order_id", keys.OrderID))

	return ForwardResult{
		Handled: true,
		Calls: reconcile.Results{
			r.updateOrder(ctx, log, event, keys.OrderID,
				reconcile.OrderStatusCompleted, reconcile.AuditActionOrderUpdated, nil),
		},
	}
}

// handleInvoicePaid handles invoice.payment_succeeded and invoice.paid events
func (r *ForwardReconciler) handleInvoicePaid(ctx context.Context, event *reconcile.BillingEvent, log *zap.Logger) ForwardResult {
	var invoice InvoicePayload
	if err := decodeObject(event, &invoice); err != nil {
		return skipped(err.Error())
	}

	keys := invoiceKeys{CommerceSubscriptionID: invoice.CommerceSubscriptionID()}
	if missing := validateKeys(keys); missing != nil {
		return skipped(missingKeys(missing))
	}

	log.Info("Handling invoice paid",
		zap.String("invoice_id", invoice.ID),
		zap.String("billing_reason", invoice.BillingReason),
		zap.String("subscription_id", keys.CommerceSubscriptionID))

	activate := reconcile.SubscriptionUpdate{Status: reconcile.SubscriptionStatusActive}

	switch invoice.BillingReason {
	case reconcile.BillingReasonSubscriptionCycle, reconcile.BillingReasonSubscriptionUpdate:
		result := ForwardResult{Handled: true}
		result.Calls = append(result.Calls, r.updateSubscription(ctx, log, event, keys.CommerceSubscriptionID, activate))
		result.Calls = append(result.Calls, r.advanceRenewalOrder(ctx, log, event, keys.CommerceSubscriptionID)...)
		return result

	case reconcile.BillingReasonSubscriptionCreate:
		// The initial invoice has no renewal order yet
		return ForwardResult{
			Handled: true,
			Calls:   reconcile.Results{r.updateSubscription(ctx, log, event, keys.CommerceSubscriptionID, activate)},
		}

	default:
		return skipped("billing reason " + invoice.BillingReason + " is not reconciled")
	}
}

// handleInvoicePaymentFailed handles invoice.payment_failed events
func (r *ForwardReconciler) handleInvoicePaymentFailed(ctx context.Context, event *reconcile.BillingEvent, log *zap.Logger) ForwardResult {
	var invoice InvoicePayload
	if err := decodeObject(event, &invoice); err != nil {
		return skipped(err.Error())
	}

	keys := invoiceKeys{CommerceSubscriptionID: invoice.CommerceSubscriptionID()}
	if missing := validateKeys(keys); missing != nil {
		return skipped(missingKeys(missing))
	}

	log.Info("Handling invoice payment failed",
		zap.String("invoice_id", invoice.ID),
		zap.String("subscription_id", keys.CommerceSubscriptionID))

	return ForwardResult{
		Handled: true,
		Calls: reconcile.Results{
			r.updateSubscription(ctx, log, event, keys.CommerceSubscriptionID,
				reconcile.SubscriptionUpdate{Status: reconcile.SubscriptionStatusOnHold}),
		},
	}
}

// handleSubscriptionUpdated handles customer.subscription.updated events
func (r *ForwardReconciler) handleSubscriptionUpdated(ctx context.Context, event *reconcile.BillingEvent, log *zap.Logger) ForwardResult {
	var sub SubscriptionPayload
	if err := decodeObject(event, &sub); err != nil {
		return skipped(err.Error())
	}

	keys := gatewaySubscriptionKeys{
		CommerceSubscriptionID: sub.Metadata[metaSubscriptionID],
		GatewaySubscriptionID:  sub.ID,
		Status:                 sub.Status,
	}
	if missing := validateKeys(keys); missing != nil {
		return skipped(missingKeys(missing))
	}

	log.Info("Handling subscription updated",
		zap.String("stripe_subscription_id", keys.GatewaySubscriptionID),
		zap.String("subscription_id", keys.CommerceSubscriptionID),
		zap.String("status", keys.Status))

	// Gateway status is passed through unchanged
	update := reconcile.WithGatewaySubscriptionID(reconcile.SubscriptionStatus(keys.Status), keys.GatewaySubscriptionID)
	return ForwardResult{
		Handled: true,
		Calls:   reconcile.Results{r.updateSubscription(ctx, log, event, keys.CommerceSubscriptionID, update)},
	}
}

// handleSubscriptionDeleted handles customer.subscription.deleted events
func (r *ForwardReconciler) handleSubscriptionDeleted(ctx context.Context, event *reconcile.BillingEvent, log *zap.Logger) ForwardResult {
	var sub SubscriptionPayload
	if err := decodeObject(event, &sub); err != nil {
		return skipped(err.Error())
	}

	keys := deletedSubscriptionKeys{CommerceSubscriptionID: sub.DeletedCommerceSubscriptionID()}
	if missing := validateKeys(keys); missing != nil {
		return skipped(missingKeys(missing))
	}

	log.Info("Handling subscription deleted",
		zap.String("stripe_subscription_id", sub.ID),
		zap.String("subscription_id", keys.CommerceSubscriptionID))

	return ForwardResult{
		Handled: true,
		Calls: reconcile.Results{
			r.updateSubscription(ctx, log, event, keys.CommerceSubscriptionID,
				reconcile.SubscriptionUpdate{Status: reconcile.SubscriptionStatusCancelled}),
		},
	}
}

// advanceRenewalOrder moves the newest pending order of the subscription to processing
func (r *ForwardReconciler) advanceRenewalOrder(ctx context.Context, log *zap.Logger, event *reconcile.BillingEvent, subscriptionID string) reconcile.Results {
	order, found, err := r.locator.FindPendingRenewal(ctx, subscriptionID)
	lookup := reconcile.NewCallResult(reconcile.TargetCommerce, opListSubscriptionOrders, subscriptionID, err)
	r.metrics.RecordDownstream(ctx, lookup)
	if err != nil {
		log.Error("Failed to locate renewal order",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return reconcile.Results{lookup}
	}
	if !found {
		log.Info("No pending renewal order", zap.String("subscription_id", subscriptionID))
		return reconcile.Results{lookup}
	}

	details := map[string]any{"subscription_id": subscriptionID}
	if !order.Total.IsZero() {
		details["total"] = order.Total.String()
		details["currency"] = order.Currency
	}
	return reconcile.Results{
		lookup,
		r.updateOrder(ctx, log, event, order.ID,
			reconcile.OrderStatusProcessing, reconcile.AuditActionRenewalOrderUpdated, details),
	}
}

func (r *ForwardReconciler) updateOrder(
	ctx context.Context,
	log *zap.Logger,
	event *reconcile.BillingEvent,
	orderID string,
	status reconcile.OrderStatus,
	action reconcile.AuditAction,
	extra map[string]any,
) reconcile.CallResult {
	err := r.commerce.UpdateOrderStatus(ctx, orderID, status)
	res := reconcile.NewCallResult(reconcile.TargetCommerce, opUpdateOrder, orderID, err)
	r.metrics.RecordDownstream(ctx, res)
	if err != nil {
		log.Error("Failed to update order",
			zap.String("order_id", orderID),
			zap.String("status", status.String()),
			zap.Error(err))
		return res
	}

	details := map[string]any{
		"order_id":   orderID,
		"status":     status.String(),
		"event_id":   event.ID,
		"event_type": string(event.Type),
	}
	for k, v := range extra {
		details[k] = v
	}
	r.audit.Record(ctx, action, details)
	return res
}

func (r *ForwardReconciler) updateSubscription(
	ctx context.Context,
	log *zap.Logger,
	event *reconcile.BillingEvent,
	subscriptionID string,
	update reconcile.SubscriptionUpdate,
) reconcile.CallResult {
	err := r.commerce.UpdateSubscriptionStatus(ctx, subscriptionID, update)
	res := reconcile.NewCallResult(reconcile.TargetCommerce, opUpdateSubscription, subscriptionID, err)
	r.metrics.RecordDownstream(ctx, res)
	if err != nil {
		log.Error("Failed to update subscription",
			zap.String("subscription_id", subscriptionID),
			zap.String("status", update.Status.String()),
			zap.Error(err))
		return res
	}

	details := map[string]any{
		"subscription_id": subscriptionID,
		"status":          update.Status.String(),
		"event_id":        event.ID,
		"event_type":      string(event.Type),
	}
	if gatewayID := reconcile.LookupMeta(update.MetaData, reconcile.MetaKeyGatewaySubscriptionID); gatewayID != "" {
		details["stripe_subscription_id"] = gatewayID
	}
	r.audit.Record(ctx, reconcile.AuditActionSubscriptionUpdated, details)
	return res
}

func missingKeys(fields []string) string {
	reason := "missing required keys:"
	for _, f := range fields {
		reason += " " + f
	}
	return reason
}
