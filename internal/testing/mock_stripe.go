// mock_stripe.go - Stripe Checkout stand-in with failure simulation
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const MockStripeKey = "sk_test_mock"

// MockStripeService provides a mock of the Stripe Checkout Sessions API
type MockStripeService struct {
	Server   *httptest.Server
	Sessions map[string]*MockCheckoutSession
	order    []string
	mu       sync.RWMutex

	// Configuration for failure simulation
	ShouldFailSessionCreate bool
	ShouldFailServer        bool
	SimulateNetworkDelay    time.Duration

	// Counters for tracking
	SessionAttempts int
	seq             int
}

type MockCheckoutSession struct {
	ID             string
	URL            string
	Form           url.Values
	IdempotencyKey string
	Created        time.Time
}

// NewMockStripeService creates a new mock Stripe service
func NewMockStripeService() *MockStripeService {
	mock := &MockStripeService{
		Sessions: make(map[string]*MockCheckoutSession),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions", mock.handleSessions)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// Close shuts down the mock server
func (m *MockStripeService) Close() {
	m.Server.Close()
}

// GetAPIBase returns the mock server's base URL
func (m *MockStripeService) GetAPIBase() string {
	return m.Server.URL
}

func (m *MockStripeService) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStripeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "Method not allowed")
		return
	}

	m.mu.Lock()
	m.SessionAttempts++
	delay := m.SimulateNetworkDelay
	failCreate := m.ShouldFailSessionCreate
	failServer := m.ShouldFailServer
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if r.Header.Get("Authorization") != "Bearer "+MockStripeKey {
		writeStripeError(w, http.StatusUnauthorized, "invalid_request_error", "Invalid API Key provided")
		return
	}

	if failServer {
		writeStripeError(w, http.StatusInternalServerError, "api_error", "Mock: Stripe is unavailable")
		return
	}

	if failCreate {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "Mock: session creation failed")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "Invalid form body")
		return
	}
	if r.PostForm.Get("line_items[0][price_data][unit_amount]") == "" {
		writeStripeError(w, http.StatusBadRequest, "invalid_request_error", "Missing required param: line_items.")
		return
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	id := fmt.Sprintf("cs_test_mock_%d", seq)
	session := &MockCheckoutSession{
		ID:             id,
		URL:            "https://checkout.stripe.com/c/pay/" + id,
		Form:           r.PostForm,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Created:        time.Now(),
	}
	m.Sessions[id] = session
	m.order = append(m.order, id)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Request-Id", "req_mock_"+strconv.Itoa(seq))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     session.ID,
		"object": "checkout.session",
		"url":    session.URL,
		"mode":   r.PostForm.Get("mode"),
		"status": "open",
	})
}

func writeStripeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	})
}

// Test Utilities

// SetFailureMode configures the mock to simulate processor failures
func (m *MockStripeService) SetFailureMode(createFail, serverFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ShouldFailSessionCreate = createFail
	m.ShouldFailServer = serverFail
}

// SetNetworkDelay simulates network latency
func (m *MockStripeService) SetNetworkDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SimulateNetworkDelay = delay
}

// Attempts returns how many session creations reached the mock
func (m *MockStripeService) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.SessionAttempts
}

// GetSessionCount returns the number of sessions created
func (m *MockStripeService) GetSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.Sessions)
}

// LastSession returns the most recently created session
func (m *MockStripeService) LastSession() (*MockCheckoutSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return nil, false
	}
	return m.Sessions[m.order[len(m.order)-1]], true
}

// LineItemCount counts the line_items[N] entries in the session form
func (s *MockCheckoutSession) LineItemCount() int {
	count := 0
	for key := range s.Form {
		if strings.HasPrefix(key, "line_items[") && strings.HasSuffix(key, "][quantity]") {
			count++
		}
	}
	return count
}

// LineItem returns a field of the n-th line item, e.g. "price_data][unit_amount"
func (s *MockCheckoutSession) LineItem(n int, field string) string {
	return s.Form.Get(fmt.Sprintf("line_items[%d][%s]", n, field))
}

// Reset clears all mock data
func (m *MockStripeService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sessions = make(map[string]*MockCheckoutSession)
	m.order = nil
	m.ShouldFailSessionCreate = false
	m.ShouldFailServer = false
	m.SimulateNetworkDelay = 0
	m.SessionAttempts = 0
}
