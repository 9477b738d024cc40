package ecommerce

import (
	"errors"
	"net/url"
	"strings"
)

// apiPath is the WooCommerce REST API root relative to the site URL
const apiPath = "/wp-json/wc/v3"

// Errors for WooCommerce configuration
var (
	ErrWooConfigMissingSiteURL        = errors.New("woocommerce: site url is required")
	ErrWooConfigInvalidSiteURL        = errors.New("woocommerce: site url must be an absolute http(s) url")
	ErrWooConfigMissingConsumerKey    = errors.New("woocommerce: consumer key is required")
	ErrWooConfigMissingConsumerSecret = errors.New("woocommerce: consumer secret is required")
)

// WooCommerceConfig holds configuration for the WooCommerce REST API
type WooCommerceConfig struct {
	// SiteURL is the store root, e.g. https://shop.example.com
	SiteURL string
	// ConsumerKey is the REST API key (ck_xxx)
	ConsumerKey string
	// ConsumerSecret is the REST API secret (cs_xxx)
	ConsumerSecret string
	// WebhookSecret signs deliveries in the X-WC-Webhook-Signature header
	WebhookSecret string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// NewWooCommerceConfig creates a configuration with defaults
func NewWooCommerceConfig(siteURL, consumerKey, consumerSecret string) *WooCommerceConfig {
	return &WooCommerceConfig{
		SiteURL:        siteURL,
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		TimeoutSeconds: 15,
	}
}

// Validate validates the configuration
func (c *WooCommerceConfig) Validate() error {
	if c.SiteURL == "" {
		return ErrWooConfigMissingSiteURL
	}
	u, err := url.Parse(c.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrWooConfigInvalidSiteURL
	}
	if c.ConsumerKey == "" {
		return ErrWooConfigMissingConsumerKey
	}
	if c.ConsumerSecret == "" {
		return ErrWooConfigMissingConsumerSecret
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
	return nil
}

// BaseURL returns the REST API root
func (c *WooCommerceConfig) BaseURL() string {
	return strings.TrimRight(c.SiteURL, "/") + apiPath
}
