package reconcile

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/subsync/backend/internal/domain/reconcile"
)

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("key"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// expandableID decodes a gateway reference that is either an id string or an
// expanded object carrying an id
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*e = expandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expected id string or object: %w", err)
	}
	*e = expandableID(obj.ID)
	return nil
}

// CheckoutSessionPayload is the data.object of checkout.session.completed
type CheckoutSessionPayload struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Subscription      expandableID      `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

// PaymentIntentPayload is the data.object of payment_intent.succeeded
type PaymentIntentPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

type subscriptionDetails struct {
	Metadata map[string]string `json:"metadata"`
}

type invoiceParent struct {
	SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
}

// subscriptionID reads parent.subscription_details.metadata.subscription_id
func (p *invoiceParent) subscriptionID() string {
	if p == nil || p.SubscriptionDetails == nil {
		return ""
	}
	return p.SubscriptionDetails.Metadata[metaSubscriptionID]
}

// InvoicePayload is the data.object of invoice.* events
type InvoicePayload struct {
	ID                  string               `json:"id"`
	BillingReason       string               `json:"billing_reason"`
	Subscription        expandableID         `json:"subscription"`
	Parent              *invoiceParent       `json:"parent"`
	SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	Metadata            map[string]string    `json:"metadata"`
}

// CommerceSubscriptionID resolves the commerce subscription id from the
// locations the gateway has used across API versions
func (p *InvoicePayload) CommerceSubscriptionID() string {
	if id := p.Parent.subscriptionID(); id != "" {
		return id
	}
	if p.SubscriptionDetails != nil {
		if id := p.SubscriptionDetails.Metadata[metaSubscriptionID]; id != "" {
			return id
		}
	}
	return p.Metadata[metaSubscriptionID]
}

// SubscriptionPayload is the data.object of customer.subscription.* events
type SubscriptionPayload struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Parent   *invoiceParent    `json:"parent"`
	Metadata map[string]string `json:"metadata"`
}

// DeletedCommerceSubscriptionID resolves the commerce subscription id of a
// deleted subscription: parent subscription_details first, then metadata.
func (p *SubscriptionPayload) DeletedCommerceSubscriptionID() string {
	if id := p.Parent.subscriptionID(); id != "" {
		return id
	}
	return p.Metadata[metaSubscriptionID]
}

// Gateway metadata keys written at checkout
const (
	metaOrderID        = "order_id"
	metaSubscriptionID = "subscription_id"
)

// Keys extracted from payloads. Each is validated before dispatch; a
// validation failure routes the event to the no-op path.

type checkoutKeys struct {
	OrderID string `key:"order_id" validate:"required,max=64"`
}

type subscriptionLinkKeys struct {
	CommerceSubscriptionID string `key:"subscription_id" validate:"required,max=64"`
	GatewaySubscriptionID  string `key:"stripe_subscription_id" validate:"required,max=255"`
}

type orderKeys struct {
	OrderID string `key:"order_id" validate:"required,max=64"`
}

type invoiceKeys struct {
	CommerceSubscriptionID string `key:"subscription_id" validate:"required,max=64"`
}

type gatewaySubscriptionKeys struct {
	CommerceSubscriptionID string `key:"subscription_id" validate:"required,max=64"`
	GatewaySubscriptionID  string `key:"id" validate:"required,max=255"`
	Status                 string `key:"status" validate:"required,max=32"`
}

type deletedSubscriptionKeys struct {
	CommerceSubscriptionID string `key:"subscription_id" validate:"required,max=64"`
}

// decodeObject decodes a data.object into its typed schema
func decodeObject(event *reconcile.BillingEvent, into any) error {
	if len(event.Object) == 0 {
		return fmt.Errorf("%w: event %s has no data.object", reconcile.ErrMalformedPayload, event.ID)
	}
	if err := json.Unmarshal(event.Object, into); err != nil {
		return fmt.Errorf("%w: event %s data.object: %v", reconcile.ErrMalformedPayload, event.ID, err)
	}
	return nil
}

// validateKeys returns the names of missing or invalid keys
func validateKeys(keys any) []string {
	err := payloadValidator.Struct(keys)
	if err == nil {
		return nil
	}
	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return fields
	}
	return []string{err.Error()}
}
