package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// maxResponseSize is the maximum allowed response size from the REST API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// WooCommerceAdapter implements reconcile.CommercePlatform on the WooCommerce REST API v3
type WooCommerceAdapter struct {
	config     *WooCommerceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWooCommerceAdapter creates a new adapter with the given configuration
func NewWooCommerceAdapter(config *WooCommerceConfig, logger *zap.Logger) (*WooCommerceAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &WooCommerceAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// GetSubscription fetches a subscription
func (a *WooCommerceAdapter) GetSubscription(ctx context.Context, subscriptionID string) (*reconcile.Subscription, error) {
	var sub WooSubscription
	if err := a.doRequest(ctx, http.MethodGet, "subscriptions/"+url.PathEscape(subscriptionID), nil, nil, &sub); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to get subscription %s: %w", subscriptionID, err)
	}
	return sub.toDomain(), nil
}

// GetSubscriptionOrders returns the orders linked to a subscription, newest first
func (a *WooCommerceAdapter) GetSubscriptionOrders(ctx context.Context, subscriptionID string) ([]reconcile.Order, error) {
	query := url.Values{}
	query.Set("orderby", "date")
	query.Set("order", "desc")

	var orders []WooOrder
	path := "subscriptions/" + url.PathEscape(subscriptionID) + "/orders"
	if err := a.doRequest(ctx, http.MethodGet, path, query, nil, &orders); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to list orders of subscription %s: %w", subscriptionID, err)
	}

	result := make([]reconcile.Order, 0, len(orders))
	for i := range orders {
		result = append(result, orders[i].toDomain())
	}
	return result, nil
}

// GetOrder fetches an order
func (a *WooCommerceAdapter) GetOrder(ctx context.Context, orderID string) (*reconcile.Order, error) {
	var order WooOrder
	if err := a.doRequest(ctx, http.MethodGet, "orders/"+url.PathEscape(orderID), nil, nil, &order); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to get order %s: %w", orderID, err)
	}
	o := order.toDomain()
	return &o, nil
}

// ListSubscriptionsByParent returns the subscriptions created by a parent order
func (a *WooCommerceAdapter) ListSubscriptionsByParent(ctx context.Context, orderID string) ([]reconcile.Subscription, error) {
	query := url.Values{}
	query.Set("parent", orderID)

	var subs []WooSubscription
	if err := a.doRequest(ctx, http.MethodGet, "subscriptions", query, nil, &subs); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to list subscriptions of order %s: %w", orderID, err)
	}

	result := make([]reconcile.Subscription, 0, len(subs))
	for i := range subs {
		result = append(result, *subs[i].toDomain())
	}
	return result, nil
}

// UpdateOrderStatus sets the status of an order
func (a *WooCommerceAdapter) UpdateOrderStatus(ctx context.Context, orderID string, status reconcile.OrderStatus) error {
	a.logger.Debug("Updating WooCommerce order",
		zap.String("order_id", orderID),
		zap.String("status", status.String()))

	body := wooStatusUpdate{Status: status.String()}
	if err := a.doRequest(ctx, http.MethodPut, "orders/"+url.PathEscape(orderID), nil, body, nil); err != nil {
		a.logger.Error("Failed to update WooCommerce order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return fmt.Errorf("woocommerce: failed to update order %s: %w", orderID, err)
	}

	a.logger.Info("Updated WooCommerce order",
		zap.String("order_id", orderID),
		zap.String("status", status.String()))
	return nil
}

// UpdateSubscriptionStatus sets the status and optional metadata of a subscription
func (a *WooCommerceAdapter) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, update reconcile.SubscriptionUpdate) error {
	a.logger.Debug("Updating WooCommerce subscription",
		zap.String("subscription_id", subscriptionID),
		zap.String("status", update.Status.String()))

	body := wooStatusUpdate{Status: update.Status.String(), MetaData: update.MetaData}
	if err := a.doRequest(ctx, http.MethodPut, "subscriptions/"+url.PathEscape(subscriptionID), nil, body, nil); err != nil {
		a.logger.Error("Failed to update WooCommerce subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return fmt.Errorf("woocommerce: failed to update subscription %s: %w", subscriptionID, err)
	}

	a.logger.Info("Updated WooCommerce subscription",
		zap.String("subscription_id", subscriptionID),
		zap.String("status", update.Status.String()))
	return nil
}

// doRequest performs an authenticated REST call. A nil out discards the response body.
func (a *WooCommerceAdapter) doRequest(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("consumer_key", a.config.ConsumerKey)
	query.Set("consumer_secret", a.config.ConsumerSecret)

	endpoint := a.config.BaseURL() + "/" + path + "?" + query.Encode()

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.Join(reconcile.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", errors.Join(reconcile.ErrUpstream, err))
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", errors.Join(reconcile.ErrUpstream, err))
	}
	return nil
}

func statusError(status int, body []byte) error {
	var apiErr wooError
	msg := fmt.Sprintf("HTTP %d", status)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		msg = fmt.Sprintf("HTTP %d %s: %s", status, apiErr.Code, apiErr.Message)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", reconcile.ErrNotFound, msg)
	}
	return fmt.Errorf("%w: %s", reconcile.ErrUpstream, msg)
}
