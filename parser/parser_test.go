package parser

import (
	"strings"
	"testing"

	"github.com/aluiziolira/storefront-sync/models"
)

func TestNormalizeDomainVariants(t *testing.T) {
	hosts := []string{"shop.example.com", "kith.com", "my-store.co.uk", "store_1.myshopify.com"}
	wrappers := []string{
		"%s",
		"www.%s",
		"http://%s",
		"https://%s",
		"https://www.%s",
		"http://www.%s/",
		"https://%s/collections/all?page=2",
		"%s:8443",
		"https://www.%s:443/products/thing",
		"  https://%s  ",
	}

	for _, host := range hosts {
		for _, w := range wrappers {
			input := strings.ReplaceAll(w, "%s", host)
			if got := NormalizeDomain(input); got != host {
				t.Fatalf("NormalizeDomain(%q) = %q, want %q", input, got, host)
			}
		}
	}
}

func TestNormalizeDomainUppercase(t *testing.T) {
	if got := NormalizeDomain("HTTPS://WWW.Shop.Example.COM/"); got != "shop.example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestMalformedDomainsNeverPanicAndAreRejected(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"http://",
		"://",
		"not a domain",
		"localhost",
		"shop.",
		".com",
		"shop..com",
		"shop.c",
		"shop.123",
		"%%%",
		"http://[::1",
		"https://exa mple.com",
		"ex!ample.com",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			normalized := NormalizeDomain(input)
			if ValidDomain(normalized) {
				t.Fatalf("ValidDomain(NormalizeDomain(%q)) = true for %q", input, normalized)
			}
		})
	}
}

func TestNormalizeDomainReturnsInputOnParseFailure(t *testing.T) {
	input := "http://[::1"
	if got := NormalizeDomain(input); got != input {
		t.Fatalf("NormalizeDomain(%q) = %q, want input unchanged", input, got)
	}
}

func TestValidDomain(t *testing.T) {
	for _, d := range []string{"example.com", "a.b.c.example.io", "my_store.myshopify.com", "x-y.shop"} {
		if !ValidDomain(d) {
			t.Fatalf("ValidDomain(%q) = false, want true", d)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "<p>Hello&nbsp;World</p>", want: "Hello World"},
		{in: "", want: ""},
		{in: "<div>\n  <strong>Bold</strong>\n\t text </div>", want: "Bold text"},
		{in: "Fish &amp; Chips &lt;3 &quot;yum&quot; it&#039;s &apos;ok&apos; &gt;", want: `Fish & Chips <3 "yum" it's 'ok' >`},
		{in: "<ul><li>One</li> <li>Two</li></ul>", want: "One Two"},
		{in: "&amp;lt;", want: "&lt;"},
		{in: "caf&#233;", want: "caf&#233;"},
	}

	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Fatalf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateUploadCollectsEveryIssue(t *testing.T) {
	products := []*models.ScrapedProduct{
		{Title: "ok", Variants: []models.ScrapedVariant{{Price: "1.00"}}},
		{Title: "", Variants: []models.ScrapedVariant{{Price: "1.00"}}},
		{Title: "no variants"},
		{Title: "bad price", Variants: []models.ScrapedVariant{{Price: "2.00"}, {Price: ""}}},
	}

	res := ValidateUpload(products)
	if res.IsValid() {
		t.Fatalf("expected issues")
	}
	if len(res.Issues) != 3 {
		t.Fatalf("issues = %d (%v), want 3", len(res.Issues), res.Messages())
	}

	wantPaths := []string{"title", "variants", "variants[1].price"}
	for i, want := range wantPaths {
		if res.Issues[i].Path != want {
			t.Fatalf("issue %d path = %q, want %q", i, res.Issues[i].Path, want)
		}
	}
	if res.Issues[2].Index != 3 {
		t.Fatalf("issue index = %d, want 3", res.Issues[2].Index)
	}
}

func TestValidateUploadEmpty(t *testing.T) {
	res := ValidateUpload(nil)
	if res.IsValid() || res.Issues[0].Code != "empty" {
		t.Fatalf("expected empty issue, got %+v", res.Issues)
	}
}

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *models.ScrapedProduct
		wantErr bool
	}{
		{name: "valid", product: &models.ScrapedProduct{ID: 1, Title: "Tee"}},
		{name: "nil", product: nil, wantErr: true},
		{name: "missing id", product: &models.ScrapedProduct{Title: "Tee"}, wantErr: true},
		{name: "missing title", product: &models.ScrapedProduct{ID: 2, Title: "  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
