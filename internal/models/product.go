package models

// Product represents a catalog item available in the store.
// Prices are integer centavos to avoid floating-point rounding.
type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Category string `json:"category"`
	ImageRef string `json:"imageRef,omitempty"`
}

// Category values used by the pricing rules.
const (
	CategoryThermalBox  = "thermal-box"
	CategoryKnife       = "knife"
	CategoryBarbecueKit = "barbecue-kit"
)
