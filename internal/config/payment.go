package config

import "time"

// PaymentConfig configures the hosted checkout provider.
type PaymentConfig struct {
	SecretKey     string // provider API key; empty disables payment initiation
	WebhookSecret string // signing secret for inbound webhooks
	Currency      string // ISO currency code, lower-case
	PublicURL     string // fallback origin for success/cancel redirects
	SuccessPath   string
	CancelPath    string
	Timeout       time.Duration
}

func LoadPaymentConfig() PaymentConfig {
	loadDotEnv()
	return PaymentConfig{
		SecretKey:     envStr("STRIPE_SECRET_KEY", ""),
		WebhookSecret: envStr("STRIPE_WEBHOOK_SECRET", ""),
		Currency:      envStr("PAYMENT_CURRENCY", "inr"),
		PublicURL:     envStr("PUBLIC_URL", "http://localhost:5173"),
		SuccessPath:   envStr("PAYMENT_SUCCESS_PATH", "/loader/my-bookings"),
		CancelPath:    envStr("PAYMENT_CANCEL_PATH", "/my-bookings"),
		Timeout:       envDur("PAYMENT_TIMEOUT", 10*time.Second),
	}
}
