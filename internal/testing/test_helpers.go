// test_helpers.go - full API stack against the Stripe mock and a temp sqlite store
package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/checkout"
	"sentinelshop/internal/shop"
	"sentinelshop/internal/snapshot"
)

// TestConfig holds configuration for test runs
type TestConfig struct {
	StripeKey     string
	PublicSiteURL string
	SnapshotTTL   time.Duration
	Timeout       time.Duration
}

// DefaultTestConfig talks to the mock with a valid key.
func DefaultTestConfig() TestConfig {
	return TestConfig{
		StripeKey:     MockStripeKey,
		PublicSiteURL: "https://shop.example.com",
		SnapshotTTL:   time.Hour,
		Timeout:       2 * time.Second,
	}
}

// TestSuite provides utilities for integration testing
type TestSuite struct {
	Config    TestConfig
	Server    *httptest.Server
	Client    *http.Client
	Stripe    *MockStripeService
	Snapshots *snapshot.SQLiteStore
	Carts     *cart.Registry
}

// NewTestSuite starts the API with the default configuration
func NewTestSuite(t *testing.T) *TestSuite {
	return NewTestSuiteWith(t, DefaultTestConfig())
}

func NewTestSuiteWith(t *testing.T, config TestConfig) *TestSuite {
	t.Helper()

	stripeMock := NewMockStripeService()

	snapshots, err := snapshot.NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"), config.SnapshotTTL)
	if err != nil {
		stripeMock.Close()
		t.Fatalf("Failed to open snapshot store: %v", err)
	}

	sessions := checkout.NewStripeSessions(checkout.StripeConfig{
		SecretKey: config.StripeKey,
		APIBase:   stripeMock.GetAPIBase(),
	})
	settings := checkout.DefaultSettings()
	settings.Timeout = config.Timeout

	carts := cart.NewRegistry()
	srv := shop.NewServer(shop.Options{
		Carts:         carts,
		Handoff:       checkout.NewHandoff(sessions, settings),
		Snapshots:     snapshots,
		PublicSiteURL: config.PublicSiteURL,
		AllowedOrigin: config.PublicSiteURL,
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}

	suite := &TestSuite{
		Config:    config,
		Server:    httptest.NewServer(srv.Handler()),
		Client:    &http.Client{Timeout: 10 * time.Second, Jar: jar},
		Stripe:    stripeMock,
		Snapshots: snapshots,
		Carts:     carts,
	}

	t.Cleanup(suite.Cleanup)
	return suite
}

// Cleanup stops the servers and closes the store
func (ts *TestSuite) Cleanup() {
	ts.Server.Close()
	ts.Stripe.Close()
	ts.Snapshots.Close()
}

// MakeAPIRequest sends body as JSON (when non-nil) with the suite's cookies
func (ts *TestSuite) MakeAPIRequest(method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return ts.Client.Do(req)
}

// ParseJSONResponse decodes and closes the response body
func (ts *TestSuite) ParseJSONResponse(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Do performs a request and decodes the JSON reply into dest, failing the
// test on transport errors or an unexpected status.
func (ts *TestSuite) Do(t *testing.T, method, path string, body interface{}, expected int, dest interface{}) {
	t.Helper()

	resp, err := ts.MakeAPIRequest(method, path, body)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	ts.AssertStatusCode(t, resp, expected)

	if dest == nil {
		resp.Body.Close()
		return
	}
	if err := ts.ParseJSONResponse(resp, dest); err != nil {
		t.Fatalf("Failed to decode %s %s response: %v", method, path, err)
	}
}

func (ts *TestSuite) AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}
