// Package models defines data structures shared by the scraper, uploader,
// and HTTP API.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScrapedProduct is a product record as published by a storefront's public
// products.json feed. URL is derived by the scraper; nothing else is
// modified after fetch.
type ScrapedProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	BodyHTML    string           `json:"body_html"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Tags        TagList          `json:"tags"`
	Variants    []ScrapedVariant `json:"variants"`
	Images      []ScrapedImage   `json:"images"`
	CreatedAt   string           `json:"created_at,omitempty"`
	UpdatedAt   string           `json:"updated_at,omitempty"`
	PublishedAt string           `json:"published_at,omitempty"`
	URL         string           `json:"url,omitempty"`
}

// TagList accepts tags either as a JSON array or as the comma-separated
// string some older feeds still publish.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("tags: expected array or string: %w", err)
	}
	out := make([]string, 0)
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*t = out
	return nil
}

// ScrapedVariant is one purchasable variant of a ScrapedProduct.
type ScrapedVariant struct {
	ID               int64   `json:"id"`
	ProductID        int64   `json:"product_id"`
	Title            string  `json:"title,omitempty"`
	Price            string  `json:"price"`
	CompareAtPrice   *string `json:"compare_at_price"`
	SKU              *string `json:"sku"`
	Grams            int     `json:"grams"`
	Available        bool    `json:"available"`
	RequiresShipping bool    `json:"requires_shipping"`
	Taxable          bool    `json:"taxable"`
	Position         int     `json:"position"`
}

// ScrapedImage is a product image. VariantIDs lists the variants the image
// is attached to, if any.
type ScrapedImage struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"product_id"`
	VariantIDs []int64 `json:"variant_ids,omitempty"`
	Src        string  `json:"src"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Alt        *string `json:"alt"`
	Position   int     `json:"position"`
}

// ScrapeResult holds the outcome of one full pagination run.
type ScrapeResult struct {
	Domain     string            `json:"storeDomain"`
	Products   []*ScrapedProduct `json:"products"`
	Pages      int               `json:"pages"`
	Warnings   []string          `json:"warnings,omitempty"`
	Retries    int               `json:"retries"`
	Duplicates int               `json:"duplicates"`
}

// ExportRecord is the flat JSON-Lines/CSV shape of a product.
type ExportRecord struct {
	ProductID int64    `json:"product_id"`
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Price     float64  `json:"price"`
	URL       string   `json:"url"`
	Image     string   `json:"image"`
	InStock   bool     `json:"in_stock"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
}
