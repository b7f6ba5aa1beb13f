package config

import (
	"testing"
	"time"
)

func TestGetEnvBasedSettingPrefersEnvironmentSuffix(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("PUBLIC_SITE_URL", "https://dev.example.com")
	t.Setenv("PUBLIC_SITE_URL_PROD", "https://shop.example.com")

	if got := GetEnvBasedSetting("PUBLIC_SITE_URL"); got != "https://shop.example.com" {
		t.Errorf("Expected prod override, got %s", got)
	}

	t.Setenv("ENVIRONMENT", "")
	if got := GetEnvBasedSetting("PUBLIC_SITE_URL"); got != "https://dev.example.com" {
		t.Errorf("Expected base value in dev, got %s", got)
	}
}

func TestCheckoutDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("CHECKOUT_CURRENCY", "")
	t.Setenv("CHECKOUT_COUNTRY", "")
	t.Setenv("CHECKOUT_TIMEOUT", "")

	if CheckoutCurrency() != "mxn" || CheckoutCountry() != "MX" || CheckoutLocale() != "es" {
		t.Errorf("Unexpected defaults %s/%s/%s", CheckoutCurrency(), CheckoutCountry(), CheckoutLocale())
	}
	if CheckoutTimeout() != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", CheckoutTimeout())
	}
	if FallbackOrigin() != "https://mechanical.sentinellab.tech" {
		t.Errorf("Unexpected fallback origin %s", FallbackOrigin())
	}
}

func TestDurationSettings(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")

	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5", 5 * time.Second},
		{"-1s", 10 * time.Second},
		{"soon", 10 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("CHECKOUT_TIMEOUT", tt.raw)
		if got := CheckoutTimeout(); got != tt.want {
			t.Errorf("CHECKOUT_TIMEOUT=%q: expected %v, got %v", tt.raw, tt.want, got)
		}
	}
}

func TestLoadStripeConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	if err := LoadStripeConfig(); err == nil {
		t.Error("Expected error for missing key")
	}

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_API_BASE", "http://127.0.0.1:12111")
	if err := LoadStripeConfig(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if StripeSecretKey() != "sk_test_123" || StripeAPIBase() != "http://127.0.0.1:12111" {
		t.Errorf("Unexpected stripe config %s %s", StripeSecretKey(), StripeAPIBase())
	}
}

func TestSecureCookies(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	if !SecureCookies() {
		t.Error("Expected secure cookies in prod")
	}
	t.Setenv("ENVIRONMENT", "dev")
	t.Setenv("SECURE_COOKIES", "")
	t.Setenv("SECURE_COOKIES_DEV", "")
	if SecureCookies() {
		t.Error("Expected plain cookies in dev")
	}
}

func TestTrustProxyHeaders(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	t.Setenv("TRUST_PROXY", "")
	t.Setenv("TRUST_PROXY_DEV", "")
	if TrustProxyHeaders() {
		t.Error("Expected proxy headers untrusted by default")
	}
	t.Setenv("TRUST_PROXY", "true")
	if !TrustProxyHeaders() {
		t.Error("Expected TRUST_PROXY=true to trust proxy headers")
	}
}
