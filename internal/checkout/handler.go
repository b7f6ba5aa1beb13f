package checkout

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/logger"
	"sentinelshop/internal/middleware"
)

type checkoutRequest struct {
	Items json.RawMessage `json:"items"`
}

// DecodeItems accepts the storefront's id → line object, or a list of lines
// keyed by their own id. Listed lines need an id; repeats are merged by
// adding quantities. A missing or null value decodes to an empty cart.
func DecodeItems(raw json.RawMessage) (map[string]cart.Line, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]cart.Line{}, nil
	}

	if raw[0] == '[' {
		var list []cart.Line
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, errors.Wrap(err, "decode cart items")
		}
		items := make(map[string]cart.Line, len(list))
		for i, line := range list {
			if line.ID == "" {
				return nil, errors.Errorf("cart item %d has no id", i)
			}
			if existing, ok := items[line.ID]; ok {
				existing.Quantity = int(Quantity(existing.Quantity) + Quantity(line.Quantity))
				items[line.ID] = existing
				continue
			}
			items[line.ID] = line
		}
		return items, nil
	}

	var items map[string]cart.Line
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	for id, line := range items {
		if line.ID == "" {
			line.ID = id
			items[id] = line
		}
	}
	return items, nil
}

// Handler serves the stateless checkout endpoint: the caller posts its whole
// cart and receives {url, sessionId}.
type Handler struct {
	Handoff        *Handoff
	PublicSiteURL  string
	FallbackOrigin string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	var req checkoutRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Solicitud inválida", err.Error())
		return
	}

	items, err := DecodeItems(req.Items)
	if err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Solicitud inválida", err.Error())
		return
	}

	result, err := h.Handoff.Begin(r.Context(), items, OriginsFromRequest(r, h.PublicSiteURL, h.FallbackOrigin))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// WriteError renders a handoff failure as the standard error payload.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var checkoutErr *Error
	if !errors.As(err, &checkoutErr) {
		checkoutErr = &Error{Kind: KindExternal, Message: MsgProcessingError, Err: err}
	}

	if checkoutErr.Kind != KindValidation {
		logger.LogHTTPError(r, checkoutErr.Status(), err)
	}
	middleware.WriteAPIError(w, r, checkoutErr.Status(), checkoutErr.Code(), checkoutErr.Message, checkoutErr.Details())
}
