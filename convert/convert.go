// Package convert maps scraped storefront products into the destination
// upload schema and the flat export shapes.
package convert

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/parser"
)

// ToProductInput builds the creation payload for one scraped product.
func ToProductInput(p *models.ScrapedProduct) models.ProductInput {
	in := models.ProductInput{
		Title:           strings.TrimSpace(p.Title),
		DescriptionHTML: p.BodyHTML,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Tags:            cleanTags(p.Tags),
		Variants:        make([]models.VariantInput, 0, len(p.Variants)),
		Images:          make([]models.MediaInput, 0, len(p.Images)),
	}

	for _, v := range p.Variants {
		vi := models.VariantInput{
			Price:            strings.TrimSpace(v.Price),
			WeightGrams:      v.Grams,
			RequiresShipping: v.RequiresShipping,
			Taxable:          v.Taxable,
		}
		if v.CompareAtPrice != nil && strings.TrimSpace(*v.CompareAtPrice) != "" {
			compareAt := strings.TrimSpace(*v.CompareAtPrice)
			vi.CompareAtPrice = &compareAt
		}
		if v.SKU != nil {
			vi.SKU = strings.TrimSpace(*v.SKU)
		}
		in.Variants = append(in.Variants, vi)
	}

	for _, img := range p.Images {
		if strings.TrimSpace(img.Src) == "" {
			continue
		}
		media := models.MediaInput{
			OriginalSource:   img.Src,
			MediaContentType: "IMAGE",
		}
		if img.Alt != nil {
			media.Alt = *img.Alt
		}
		in.Images = append(in.Images, media)
	}
	return in
}

// ToExportRecord flattens a product into its JSON-Lines shape.
func ToExportRecord(p *models.ScrapedProduct) models.ExportRecord {
	rec := models.ExportRecord{
		ProductID: p.ID,
		Title:     p.Title,
		Text:      parser.StripHTML(p.BodyHTML),
		URL:       p.URL,
		Category:  p.ProductType,
		Tags:      p.Tags,
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if len(p.Variants) > 0 {
		rec.Price = ParsePrice(p.Variants[0].Price)
	}
	if len(p.Images) > 0 {
		rec.Image = p.Images[0].Src
	}
	for _, v := range p.Variants {
		if v.Available {
			rec.InStock = true
			break
		}
	}
	return rec
}

// FromAdminProduct maps a destination product back to the scraped shape.
// Destination ids are not numeric, so ID is left zero.
func FromAdminProduct(a models.AdminProduct) *models.ScrapedProduct {
	p := &models.ScrapedProduct{
		Title:       a.Title,
		Handle:      a.Handle,
		BodyHTML:    a.DescriptionHTML,
		Vendor:      a.Vendor,
		ProductType: a.ProductType,
		Tags:        append([]string(nil), a.Tags...),
		CreatedAt:   a.CreatedAt,
	}
	for i, v := range a.Variants {
		sv := models.ScrapedVariant{
			Title:          v.Title,
			Price:          v.Price,
			CompareAtPrice: v.CompareAtPrice,
			Position:       i + 1,
		}
		if v.SKU != "" {
			sku := v.SKU
			sv.SKU = &sku
		}
		p.Variants = append(p.Variants, sv)
	}
	if a.ImageURL != "" {
		p.Images = append(p.Images, models.ScrapedImage{Src: a.ImageURL, Position: 1})
	}
	return p
}

// ParsePrice reads a decimal-as-string price, returning 0 when it does not
// parse.
func ParsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
