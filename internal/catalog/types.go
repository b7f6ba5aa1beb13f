package catalog

// Catalog file structure for CATALOG_FILE
type CatalogData struct {
	Product Product  `json:"product"`
	Gallery []string `json:"gallery"`
}

type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	BasePrice     float64  `json:"basePrice"`
	ShippingLabel string   `json:"shippingLabel,omitempty"`
	Description   string   `json:"description,omitempty"`
	Finishes      []Finish `json:"finishes"`
}

// Finish is a paint option; Price is the surcharge over the base price.
type Finish struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Hidden bool    `json:"hidden,omitempty"`
}

type GalleryPage struct {
	Page   int      `json:"page"`
	Pages  int      `json:"pages"`
	Images []string `json:"images"`
}
