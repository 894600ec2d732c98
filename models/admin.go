package models

// AdminProduct is the destination platform's product fetch shape.
type AdminProduct struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Handle          string         `json:"handle"`
	DescriptionHTML string         `json:"descriptionHtml"`
	Vendor          string         `json:"vendor"`
	ProductType     string         `json:"productType"`
	Status          string         `json:"status"`
	Tags            []string       `json:"tags"`
	TotalInventory  int            `json:"totalInventory"`
	CreatedAt       string         `json:"createdAt"`
	ImageURL        string         `json:"imageUrl,omitempty"`
	Variants        []AdminVariant `json:"variants"`
}

// AdminVariant is a destination variant as returned by product queries.
type AdminVariant struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compareAtPrice"`
	SKU            string  `json:"sku"`
}

// PageInfo is cursor pagination state for product listings.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// ProductPage is one page of destination products.
type ProductPage struct {
	Products []AdminProduct `json:"products"`
	PageInfo PageInfo       `json:"pageInfo"`
}
