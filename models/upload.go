package models

// UploadFailure records one product that could not be created.
type UploadFailure struct {
	ProductTitle string `json:"productTitle"`
	Error        string `json:"error"`
}

// UploadProgress is the running tally of one upload run.
type UploadProgress struct {
	Total       int             `json:"total"`
	Completed   int             `json:"completed"`
	Failed      int             `json:"failed"`
	CurrentItem string          `json:"currentItem"`
	Errors      []UploadFailure `json:"errors"`
}

// Snapshot returns a copy that does not share the failure slice.
func (p UploadProgress) Snapshot() UploadProgress {
	out := p
	out.Errors = make([]UploadFailure, len(p.Errors))
	copy(out.Errors, p.Errors)
	return out
}

// ProductInput is the destination creation payload. SKUs travel on
// VariantInput but are applied in a separate inventory call.
type ProductInput struct {
	Title           string         `json:"title"`
	DescriptionHTML string         `json:"descriptionHtml"`
	Vendor          string         `json:"vendor"`
	ProductType     string         `json:"productType"`
	Tags            []string       `json:"tags"`
	Variants        []VariantInput `json:"-"`
	Images          []MediaInput   `json:"-"`
}

// VariantInput carries the price, weight, and shipping attributes of one
// source variant.
type VariantInput struct {
	Price            string  `json:"price"`
	CompareAtPrice   *string `json:"compareAtPrice,omitempty"`
	SKU              string  `json:"-"`
	WeightGrams      int     `json:"-"`
	RequiresShipping bool    `json:"-"`
	Taxable          bool    `json:"taxable"`
}

// MediaInput attaches an image by source URL.
type MediaInput struct {
	OriginalSource   string `json:"originalSource"`
	Alt              string `json:"alt,omitempty"`
	MediaContentType string `json:"mediaContentType"`
}

// VariantRef identifies a destination variant and its inventory item.
type VariantRef struct {
	ID              string `json:"id"`
	InventoryItemID string `json:"inventoryItemId"`
}

// DeleteResult is the outcome of a bulk delete.
type DeleteResult struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}
