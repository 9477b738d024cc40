package ecommerce

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// wooDateLayout is the layout of WooCommerce *_gmt timestamps
const wooDateLayout = "2006-01-02T15:04:05"

// WooOrder is the REST representation of an order
type WooOrder struct {
	ID             int64  `json:"id"`
	ParentID       int64  `json:"parent_id"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	Total          string `json:"total"`
	DateCreated    string `json:"date_created"`
	DateCreatedGMT string `json:"date_created_gmt"`
}

// WooBilling is the billing address block
type WooBilling struct {
	Email string `json:"email"`
}

// WooSubscription is the REST representation of a subscription
type WooSubscription struct {
	ID                 int64                `json:"id"`
	ParentID           int64                `json:"parent_id"`
	Status             string               `json:"status"`
	Billing            WooBilling           `json:"billing"`
	NextPaymentDateGMT string               `json:"next_payment_date_gmt"`
	MetaData           []reconcile.MetaData `json:"meta_data"`
}

// wooStatusUpdate is the PUT body for order and subscription status writes
type wooStatusUpdate struct {
	Status   string               `json:"status"`
	MetaData []reconcile.MetaData `json:"meta_data,omitempty"`
}

// wooError is the error envelope returned by the REST API
type wooError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (o *WooOrder) toDomain() reconcile.Order {
	created := parseWooDate(o.DateCreatedGMT)
	if created.IsZero() {
		created = parseWooDate(o.DateCreated)
	}
	return reconcile.Order{
		ID:          formatID(o.ID),
		ParentID:    formatID(o.ParentID),
		Status:      reconcile.OrderStatus(o.Status),
		Total:       ParseDecimal(o.Total),
		Currency:    o.Currency,
		DateCreated: created,
	}
}

func (s *WooSubscription) toDomain() *reconcile.Subscription {
	return &reconcile.Subscription{
		ID:              formatID(s.ID),
		ParentID:        formatID(s.ParentID),
		Status:          reconcile.SubscriptionStatus(s.Status),
		BillingEmail:    s.Billing.Email,
		NextPaymentDate: s.NextPaymentDateGMT,
		MetaData:        s.MetaData,
	}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func parseWooDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(wooDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseDecimal safely parses a string to decimal
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
