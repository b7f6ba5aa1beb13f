// Package shop serves the storefront API: catalog reads, the session cart
// and both checkout entry points.
package shop

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/catalog"
	"sentinelshop/internal/checkout"
	"sentinelshop/internal/logger"
	"sentinelshop/internal/middleware"
	"sentinelshop/internal/snapshot"
)

const SessionCookieName = "sentinel_cart"

type Options struct {
	Carts     *cart.Registry
	Catalog   *catalog.Service
	Handoff   *checkout.Handoff
	Snapshots snapshot.Store
	// Limiter throttles both checkout routes when set.
	Limiter *middleware.RateLimiter

	PublicSiteURL  string
	FallbackOrigin string
	AllowedOrigin  string
	SecureCookies  bool
}

type Server struct {
	carts     *cart.Registry
	catalog   *catalog.Service
	handoff   *checkout.Handoff
	snapshots snapshot.Store
	limiter   *middleware.RateLimiter

	publicSiteURL  string
	fallbackOrigin string
	allowedOrigin  string
	secureCookies  bool

	now func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Carts == nil {
		opts.Carts = cart.NewRegistry()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewService()
	}
	if opts.Handoff == nil {
		opts.Handoff = checkout.NewHandoff(nil, checkout.DefaultSettings())
	}
	if opts.FallbackOrigin == "" {
		opts.FallbackOrigin = checkout.DefaultFallbackOrigin
	}

	opts.Carts.Observe(func(sessionID string, v cart.View) {
		logger.WithFields(logrus.Fields{
			"cart_session": sessionID,
			"lines":        len(v.Items),
			"count":        v.Count,
			"total":        v.Total,
			"version":      v.Version,
		}).Debug("Cart updated")
	})

	return &Server{
		carts:          opts.Carts,
		catalog:        opts.Catalog,
		handoff:        opts.Handoff,
		snapshots:      opts.Snapshots,
		limiter:        opts.Limiter,
		publicSiteURL:  opts.PublicSiteURL,
		fallbackOrigin: opts.FallbackOrigin,
		allowedOrigin:  opts.AllowedOrigin,
		secureCookies:  opts.SecureCookies,
		now:            time.Now,
	}
}

// sessionID returns the cart session carried by the request cookie, if any.
func (s *Server) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// sessionCart returns the caller's cart, issuing a session cookie first if
// the request carries none.
func (s *Server) sessionCart(w http.ResponseWriter, r *http.Request) (string, *cart.Store) {
	id, ok := s.sessionID(r)
	if !ok {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
		logger.LogDebug("Issued cart session %s to %s", id, logger.GetClientIP(r))
	}
	return id, s.carts.Get(id)
}

// currentView is the caller's cart without creating a session.
func (s *Server) currentView(r *http.Request) cart.View {
	if id, ok := s.sessionID(r); ok {
		if store, ok := s.carts.Lookup(id); ok {
			return store.View()
		}
	}
	return cart.View{Items: map[string]cart.Line{}}
}

func (s *Server) origins(r *http.Request) checkout.Origins {
	return checkout.OriginsFromRequest(r, s.publicSiteURL, s.fallbackOrigin)
}
