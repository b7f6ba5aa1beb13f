package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/logger"
)

const GalleryPageSize = 5

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownFinish  = errors.New("unknown finish")
)

type Service struct {
	product  Product
	finishes map[string]Finish
	gallery  []string

	lastLoaded time.Time
	mutex      sync.RWMutex
}

func NewService() *Service {
	s := &Service{}
	s.populate(Default())
	return s
}

// Default is the built-in catalog used when no CATALOG_FILE is configured.
func Default() CatalogData {
	gallery := make([]string, 0, 15)
	for i := 1; i <= 15; i++ {
		gallery = append(gallery, fmt.Sprintf("/pcs/gabinete%d.webp", i))
	}

	return CatalogData{
		Product: Product{
			ID:            "gabinete-sentinel-pro",
			Name:          "Gabinete Sentinel Pro",
			BasePrice:     3500,
			ShippingLabel: "Envío gratis",
			Description:   "Gabinete de alta calidad con espacio optimizado para todos tus componentes. Incluye todo lo necesario para tu equipo, solo la pintura electroestática es adicional.",
			Finishes: []Finish{
				{ID: "none", Name: "Sin pintura", Price: 0, Image: "/frames/0250.webp"},
				{ID: "white", Name: "Blanco", Price: 500, Image: "/frames/0300.webp"},
				{ID: "black", Name: "Negro", Price: 500, Image: "/frames/0350.webp"},
				{ID: "red", Name: "Rojo", Price: 500, Image: "/frames/0400.webp"},
			},
		},
		Gallery: gallery,
	}
}

// LoadFromFile replaces the catalog with the contents of a JSON file.
func (s *Service) LoadFromFile(path string) error {
	logger.LogInfo("Loading catalog from file: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read catalog file")
	}

	var catalog CatalogData
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "failed to parse catalog file")
	}
	if catalog.Product.ID == "" {
		return errors.New("catalog file has no product id")
	}

	s.mutex.Lock()
	s.populate(catalog)
	s.lastLoaded = time.Now()
	s.mutex.Unlock()

	logger.LogInfo("Successfully loaded catalog: product %s, %d finishes, %d gallery images",
		catalog.Product.ID, len(s.finishes), len(catalog.Gallery))
	return nil
}

// populate indexes the available finishes. Caller holds the write lock.
func (s *Service) populate(catalog CatalogData) {
	s.product = catalog.Product
	s.product.Finishes = nil
	s.finishes = make(map[string]Finish)

	for _, finish := range catalog.Product.Finishes {
		if finish.Hidden {
			continue
		}
		s.product.Finishes = append(s.product.Finishes, finish)
		s.finishes[finish.ID] = finish
	}

	s.gallery = append([]string(nil), catalog.Gallery...)
}

func (s *Service) Product() Product {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	product := s.product
	product.Finishes = append([]Finish(nil), s.product.Finishes...)
	return product
}

func (s *Service) CacheAge() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.lastLoaded.IsZero() {
		return 0
	}
	return time.Since(s.lastLoaded)
}

// Variant builds the cart line candidate for a product and finish. The finish
// may be given by id or by display name ("Blanco", "sin pintura").
func (s *Service) Variant(productID, finishRef string) (cart.Line, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if productID != s.product.ID {
		return cart.Line{}, errors.Wrapf(ErrUnknownProduct, "product %q", productID)
	}

	finish, ok := s.lookupFinish(finishRef)
	if !ok {
		return cart.Line{}, errors.Wrapf(ErrUnknownFinish, "finish %q", finishRef)
	}

	price := decimal.NewFromFloat(s.product.BasePrice).Add(decimal.NewFromFloat(finish.Price))

	return cart.Line{
		ID:    s.product.ID + "-" + finish.ID,
		Name:  fmt.Sprintf("%s (%s)", s.product.Name, finish.Name),
		Price: price.InexactFloat64(),
		Image: finish.Image,
		Attributes: map[string]interface{}{
			"baseProduct": s.product.ID,
			"finish":      finish.ID,
			"finishName":  finish.Name,
			"color":       finish.Name,
		},
	}, nil
}

func (s *Service) lookupFinish(ref string) (Finish, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = "none"
	}
	if finish, ok := s.finishes[ref]; ok {
		return finish, true
	}
	for _, finish := range s.product.Finishes {
		if strings.EqualFold(finish.Name, ref) || strings.EqualFold(finish.ID, ref) {
			return finish, true
		}
	}
	return Finish{}, false
}

// GalleryPage returns the page-th group of GalleryPageSize images. The index
// wraps around in both directions like the storefront carousel.
func (s *Service) GalleryPage(page int) GalleryPage {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	pages := (len(s.gallery) + GalleryPageSize - 1) / GalleryPageSize
	if pages == 0 {
		return GalleryPage{Images: []string{}}
	}

	page %= pages
	if page < 0 {
		page += pages
	}

	start := page * GalleryPageSize
	end := start + GalleryPageSize
	if end > len(s.gallery) {
		end = len(s.gallery)
	}

	return GalleryPage{
		Page:   page,
		Pages:  pages,
		Images: append([]string(nil), s.gallery[start:end]...),
	}
}
