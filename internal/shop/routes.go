package shop

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/checkout"
	"sentinelshop/internal/logger"
	"sentinelshop/internal/middleware"
	"sentinelshop/internal/snapshot"
	"sentinelshop/internal/telemetry"
)

const msgInvalidRequest = "Solicitud inválida"

// Handler returns the full API handler: CORS outside, then the router with
// tracing, request ids, logging and panic recovery on every matched route.
func (s *Server) Handler() http.Handler {
	return middleware.Chain(s.Router(), middleware.CORS(s.allowedOrigin))
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(telemetry.ServiceName), middleware.RequestID, middleware.Logging, middleware.ErrorHandling)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	// Routes live on the root router so a known path with the wrong verb
	// reaches MethodNotAllowedHandler instead of falling through to 404.
	r.HandleFunc("/api/product", s.handleProduct).Methods(http.MethodGet)
	r.HandleFunc("/api/gallery", s.handleGallery).Methods(http.MethodGet)

	r.HandleFunc("/api/cart", s.handleGetCart).Methods(http.MethodGet)
	r.HandleFunc("/api/cart", s.handleClearCart).Methods(http.MethodDelete)
	r.HandleFunc("/api/cart/items", s.handleAddItem).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/items/{id}/decrement", s.handleDecrementItem).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/items/{id}", s.handleUpdateItem).Methods(http.MethodPut)

	r.Handle("/api/cart/checkout", s.limit(http.HandlerFunc(s.handleCartCheckout))).Methods(http.MethodPost)
	r.Handle("/api/checkout", s.limit(&checkout.Handler{
		Handoff:        s.handoff,
		PublicSiteURL:  s.publicSiteURL,
		FallbackOrigin: s.fallbackOrigin,
	})).Methods(http.MethodPost)
	r.HandleFunc("/api/checkout/sessions/{sessionId}", s.handleGetSnapshot).Methods(http.MethodGet)

	r.NotFoundHandler = middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.LogInfo("404 not found: %s", r.URL.Path)
		middleware.WriteAPIError(w, r, http.StatusNotFound, "not_found", "Recurso no encontrado", r.URL.Path)
	}))
	r.MethodNotAllowedHandler = middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Método no permitido", r.Method)
	}))

	return r
}

func (s *Server) limit(h http.Handler) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Limit(h)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.catalog.Product())
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}
	middleware.WriteAPISuccess(w, r, s.catalog.GalleryPage(page))
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, s.currentView(r))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Finish    string `json:"finish"`
}

// handleAddItem accepts either a catalog reference {productId, finish} or a
// full line as the storefront builds it.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := middleware.ParseJSONRequest(r, &raw); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", msgInvalidRequest, err.Error())
		return
	}

	line, err := s.lineFromRequest(raw)
	if err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_item", "Producto no válido", err.Error())
		return
	}

	_, store := s.sessionCart(w, r)
	store.Add(line)
	middleware.WriteJSON(w, http.StatusOK, store.View())
}

func (s *Server) lineFromRequest(raw json.RawMessage) (cart.Line, error) {
	var ref addItemRequest
	if err := json.Unmarshal(raw, &ref); err != nil {
		return cart.Line{}, errors.Wrap(err, "decode item")
	}
	if ref.ProductID != "" {
		return s.catalog.Variant(ref.ProductID, ref.Finish)
	}

	var line cart.Line
	if err := json.Unmarshal(raw, &line); err != nil {
		return cart.Line{}, errors.Wrap(err, "decode item")
	}
	if line.ID == "" {
		return cart.Line{}, errors.New("item id is required")
	}
	return line, nil
}

func (s *Server) handleDecrementItem(w http.ResponseWriter, r *http.Request) {
	_, store := s.sessionCart(w, r)
	store.Remove(mux.Vars(r)["id"])
	middleware.WriteJSON(w, http.StatusOK, store.View())
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", msgInvalidRequest, err.Error())
		return
	}
	if req.Quantity == nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", msgInvalidRequest, "quantity is required")
		return
	}

	_, store := s.sessionCart(w, r)
	store.Update(mux.Vars(r)["id"], *req.Quantity)
	middleware.WriteJSON(w, http.StatusOK, store.View())
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	_, store := s.sessionCart(w, r)
	store.Clear()
	middleware.WriteJSON(w, http.StatusOK, store.View())
}

// handleCartCheckout hands the session cart to the processor. The cart is
// left as it is in every outcome; the landing page clears it after payment.
func (s *Server) handleCartCheckout(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	view := s.currentView(r)
	result, err := s.handoff.Begin(r.Context(), view.Items, s.origins(r))
	if err != nil {
		checkout.WriteError(w, r, err)
		return
	}

	s.saveSnapshot(r, result.SessionID, view)
	middleware.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) saveSnapshot(r *http.Request, sessionID string, view cart.View) {
	if s.snapshots == nil {
		return
	}
	rec := snapshot.NewRecord(sessionID, view, s.now())
	if err := s.snapshots.Save(r.Context(), rec); err != nil {
		logger.LogWarn("Failed to save checkout snapshot %s: %v", sessionID, err)
	}
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if s.snapshots == nil {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "snapshot_not_found", "Pedido no encontrado", sessionID)
		return
	}

	rec, err := s.snapshots.Get(r.Context(), sessionID)
	if errors.Cause(err) == snapshot.ErrNotFound {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "snapshot_not_found", "Pedido no encontrado", sessionID)
		return
	}
	if err != nil {
		logger.LogHTTPError(r, http.StatusInternalServerError, err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error", "Error interno", "")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rec)
}
