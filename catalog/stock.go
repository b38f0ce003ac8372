package catalog

// Availability is what a product badge shows.
type Availability struct {
	Label     string
	Available bool
}

// StockStatus prefers the label the backend sent. Without one it derives a
// label from inStock and stockQuantity; a product with no stock information
// at all is shown as in stock.
func StockStatus(p Product) Availability {
	available := (p.InStock != nil && *p.InStock) || (p.StockQuantity != nil && *p.StockQuantity > 0)
	explicitlyOut := (p.InStock != nil && !*p.InStock) || (p.StockQuantity != nil && *p.StockQuantity == 0)
	noInfo := p.InStock == nil && p.StockQuantity == nil

	a := Availability{Available: available || noInfo}
	switch {
	case p.StockStatus != "":
		a.Label = p.StockStatus
	case explicitlyOut:
		a.Label = "Out of stock"
	case a.Available:
		a.Label = "In stock"
	default:
		a.Label = "Out of stock"
	}
	return a
}
