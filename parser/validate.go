package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/storefront-sync/models"
)

// ValidationIssue describes one problem with an upload request.
type ValidationIssue struct {
	Index   int    `json:"index"`
	Title   string `json:"title,omitempty"`
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects every issue found, not just the first.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues"`
}

func (r ValidationResult) IsValid() bool {
	return len(r.Issues) == 0
}

// Messages flattens the issues into human-readable strings.
func (r ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		out = append(out, issue.Message)
	}
	return out
}

// ValidateUpload checks an upload run before any network call is made.
func ValidateUpload(products []*models.ScrapedProduct) ValidationResult {
	var res ValidationResult
	if len(products) == 0 {
		res.Issues = append(res.Issues, ValidationIssue{
			Index:   -1,
			Path:    "products",
			Code:    "empty",
			Message: "no products to upload",
		})
		return res
	}

	for i, p := range products {
		if p == nil {
			addIssue(&res, i, "", "products", "missing", fmt.Sprintf("product %d is null", i+1))
			continue
		}
		label := productLabel(i, p)
		if strings.TrimSpace(p.Title) == "" {
			addIssue(&res, i, p.Title, "title", "required", fmt.Sprintf("%s: missing title", label))
		}
		if len(p.Variants) == 0 {
			addIssue(&res, i, p.Title, "variants", "required", fmt.Sprintf("%s: has no variants", label))
			continue
		}
		for j, v := range p.Variants {
			if strings.TrimSpace(v.Price) == "" {
				addIssue(&res, i, p.Title, fmt.Sprintf("variants[%d].price", j), "required",
					fmt.Sprintf("%s: variant %d is missing a price", label, j+1))
			}
		}
	}
	return res
}

// ValidateProduct ensures a scraped record carries the fields every export
// needs.
func ValidateProduct(p *models.ScrapedProduct) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if p.ID == 0 {
		return fmt.Errorf("product missing id")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product %d missing title", p.ID)
	}
	return nil
}

func productLabel(i int, p *models.ScrapedProduct) string {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Sprintf("product %d", i+1)
	}
	return fmt.Sprintf("product %d (%q)", i+1, p.Title)
}

func addIssue(res *ValidationResult, index int, title, path, code, msg string) {
	res.Issues = append(res.Issues, ValidationIssue{
		Index:   index,
		Title:   title,
		Path:    path,
		Code:    code,
		Message: msg,
	})
}
