package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/storefront-sync/admin"
	"github.com/aluiziolira/storefront-sync/config"
	"github.com/aluiziolira/storefront-sync/history"
	"github.com/aluiziolira/storefront-sync/models"
	"github.com/aluiziolira/storefront-sync/scraper"
	"github.com/jarcoal/httpmock"
)

const feedURL = "https://shop.example.com/products.json"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PageDelay = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Millisecond
	cfg.BatchDelay = 0
	cfg.ImageSettleDelay = 0
	cfg.ShopDomain = "dest.myshopify.com"
	return cfg
}

func feedBody(count int) string {
	var items []string
	for i := 1; i <= count; i++ {
		items = append(items, fmt.Sprintf(`{"id":%d,"title":"Item %d","handle":"item-%d","body_html":"<b>Item</b>","vendor":"Acme","product_type":"Widgets","tags":"a, b","variants":[{"id":%d,"price":"5.00","available":true}],"images":[]}`, i, i, i, i*10))
	}
	return `{"products":[` + strings.Join(items, ",") + `]}`
}

type fakeCatalog struct {
	mu        sync.Mutex
	failTitle string
	created   []string
	deleted   []string
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in models.ProductInput) (string, error) {
	if in.Title == f.failTitle {
		return "", &admin.UserErrors{Operation: "productCreate", Errors: []admin.UserError{{Message: "Title has already been taken"}}}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in.Title)
	return "gid://shopify/Product/" + in.Title, nil
}

func (f *fakeCatalog) DefaultVariant(context.Context, string) (models.VariantRef, error) {
	return models.VariantRef{ID: "v", InventoryItemID: "i"}, nil
}

func (f *fakeCatalog) UpdateVariantPrice(context.Context, string, string, models.VariantInput) error {
	return nil
}

func (f *fakeCatalog) CreateVariant(context.Context, string, models.VariantInput) (models.VariantRef, error) {
	return models.VariantRef{ID: "v2", InventoryItemID: "i2"}, nil
}

func (f *fakeCatalog) SetInventorySKU(context.Context, string, string) error { return nil }

func (f *fakeCatalog) CreateMedia(context.Context, string, []models.MediaInput) error { return nil }

func (f *fakeCatalog) DeleteProduct(_ context.Context, id string) error {
	if id == "missing" {
		return errors.New("productDelete: Product does not exist")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, first int, after, query string) (*models.ProductPage, error) {
	return &models.ProductPage{
		Products: []models.AdminProduct{{ID: "gid://shopify/Product/1", Title: fmt.Sprintf("first=%d after=%s query=%s", first, after, query)}},
		PageInfo: models.PageInfo{HasNextPage: true, EndCursor: "next"},
	}, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*models.AdminProduct, error) {
	if id == "404" {
		return nil, fmt.Errorf("product %s: %w", id, admin.ErrNotFound)
	}
	return &models.AdminProduct{
		ID:     admin.ProductGID(id),
		Title:  "Mug",
		Vendor: "Acme",
		Tags:   []string{"kitchen"},
		Variants: []models.AdminVariant{
			{ID: "gid://shopify/ProductVariant/1", Price: "9.99", SKU: "MUG-1"},
		},
	}, nil
}

type testEnv struct {
	srv     *Server
	catalog *fakeCatalog
	store   *history.Store
}

func newTestEnv(t *testing.T, responder httpmock.Responder, withCatalog, withHistory bool) *testEnv {
	t.Helper()
	cfg := testConfig()
	s, err := scraper.NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	if responder != nil {
		transport.RegisterResponder("GET", feedURL, responder)
	}
	s.SetTransport(transport)

	env := &testEnv{}
	var catalog Catalog
	if withCatalog {
		env.catalog = &fakeCatalog{failTitle: "Product 2"}
		catalog = env.catalog
	}
	if withHistory {
		store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("open history: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		env.store = store
	}
	env.srv = New(cfg, s, catalog, env.store)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return out
}

func parseFrames(t *testing.T, body string) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		var ev models.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", frame, err)
		}
		events = append(events, ev)
	}
	return events
}

func sampleProducts(n int) []*models.ScrapedProduct {
	var out []*models.ScrapedProduct
	for i := 1; i <= n; i++ {
		out = append(out, &models.ScrapedProduct{
			ID:       int64(i),
			Title:    fmt.Sprintf("Product %d", i),
			BodyHTML: "<p>Hello&nbsp;World</p>",
			Tags:     models.TagList{"a", "b"},
			Variants: []models.ScrapedVariant{{ID: int64(i * 10), Price: "19.99", Available: true}},
		})
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, false, false)
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["status"] != "ok" || body["adminConfigured"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestScrapeStreamRejectsInvalidDomain(t *testing.T) {
	env := newTestEnv(t, nil, false, false)
	tests := []any{
		map[string]string{"domain": "not a domain"},
		map[string]string{"domain": ""},
		"{broken",
	}
	for _, body := range tests {
		rec := env.do(t, http.MethodPost, "/api/scrape/stream", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d for %v", rec.Code, body)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q, the stream must not open", ct)
		}
		if got := decodeJSON(t, rec); got["success"] != false || got["error"] == "" {
			t.Fatalf("body = %v", got)
		}
	}
}

func TestScrapeStreamFrames(t *testing.T) {
	env := newTestEnv(t, httpmock.NewStringResponder(200, feedBody(3)), false, true)

	rec := env.do(t, http.MethodPost, "/api/scrape/stream", map[string]string{"domain": "https://www.Shop.Example.com/collections/all"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := parseFrames(t, rec.Body.String())
	if events[0].Type != models.EventStart || events[0].Domain != "shop.example.com" {
		t.Fatalf("first event = %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != models.EventDone || last.Total != 3 {
		t.Fatalf("last event = %+v", last)
	}
	var delivered int
	for _, ev := range events {
		if ev.Type == models.EventProducts {
			delivered += len(ev.Products)
		}
	}
	if delivered != 3 {
		t.Fatalf("delivered = %d", delivered)
	}

	runs, err := env.store.ListScrapes(context.Background(), 10)
	if err != nil || len(runs) != 1 || runs[0].Products != 3 || runs[0].Status != history.StatusSuccess {
		t.Fatalf("runs = %+v err = %v", runs, err)
	}
}

func TestScrapeStreamErrorFrame(t *testing.T) {
	env := newTestEnv(t, httpmock.NewStringResponder(404, ""), false, false)

	rec := env.do(t, http.MethodPost, "/api/scrape/stream", map[string]string{"domain": "shop.example.com"})
	events := parseFrames(t, rec.Body.String())
	last := events[len(events)-1]
	if last.Type != models.EventError || last.Code != "store_not_found" {
		t.Fatalf("last event = %+v", last)
	}
	for _, ev := range events {
		if ev.Type == models.EventDone {
			t.Fatalf("failed stream must not emit done")
		}
	}
}

func TestScrapeNonStreaming(t *testing.T) {
	env := newTestEnv(t, httpmock.NewStringResponder(200, feedBody(2)), false, false)

	rec := env.do(t, http.MethodPost, "/api/scrape", map[string]string{"domain": "shop.example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["success"] != true || body["count"].(float64) != 2 || body["storeDomain"] != "shop.example.com" {
		t.Fatalf("body = %v", body)
	}
	products := body["products"].([]any)
	first := products[0].(map[string]any)
	if first["url"] != "https://shop.example.com/products/item-1" {
		t.Fatalf("url = %v", first["url"])
	}
	if tags := first["tags"].([]any); len(tags) != 2 || tags[1] != "b" {
		t.Fatalf("tags = %v", tags)
	}
}

func TestScrapeNotFoundStatus(t *testing.T) {
	env := newTestEnv(t, httpmock.NewStringResponder(404, ""), false, false)
	rec := env.do(t, http.MethodPost, "/api/scrape", map[string]string{"domain": "shop.example.com"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["success"] != false || body["code"] != "store_not_found" {
		t.Fatalf("body = %v", body)
	}
}

func TestAdminEndpointsNeedCatalog(t *testing.T) {
	env := newTestEnv(t, nil, false, false)
	paths := []struct{ method, path string }{
		{http.MethodPost, "/api/upload-scraped"},
		{http.MethodPost, "/api/upload-scraped/stream"},
		{http.MethodPost, "/api/products/delete"},
		{http.MethodGet, "/api/products"},
		{http.MethodGet, "/api/products/1"},
	}
	for _, p := range paths {
		rec := env.do(t, p.method, p.path, map[string]any{})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s status = %d", p.method, p.path, rec.Code)
		}
	}
}

func TestUploadScraped(t *testing.T) {
	env := newTestEnv(t, nil, true, true)

	rec := env.do(t, http.MethodPost, "/api/upload-scraped", map[string]any{
		"products":            sampleProducts(3),
		"batchSize":           2,
		"delayBetweenBatches": 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Success bool                  `json:"success"`
		Result  models.UploadProgress `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Result.Completed != 2 || body.Result.Failed != 1 {
		t.Fatalf("result = %+v", body.Result)
	}
	if body.Result.Errors[0].ProductTitle != "Product 2" {
		t.Fatalf("errors = %+v", body.Result.Errors)
	}

	runs, err := env.store.ListUploads(context.Background(), 5)
	if err != nil || len(runs) != 1 || runs[0].Failed != 1 || runs[0].Shop != "dest.myshopify.com" {
		t.Fatalf("runs = %+v err = %v", runs, err)
	}
}

func TestUploadValidationFailure(t *testing.T) {
	env := newTestEnv(t, nil, true, false)
	products := sampleProducts(2)
	products[0].Title = ""
	products[1].Variants = nil

	for _, path := range []string{"/api/upload-scraped", "/api/upload-scraped/stream"} {
		rec := env.do(t, http.MethodPost, path, map[string]any{"products": products})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		body := decodeJSON(t, rec)
		if body["success"] != false || len(body["details"].([]any)) != 2 {
			t.Fatalf("%s body = %v", path, body)
		}
	}
	if len(env.catalog.created) != 0 {
		t.Fatalf("nothing may be created on validation failure")
	}
}

func TestUploadStreamFrames(t *testing.T) {
	env := newTestEnv(t, nil, true, false)

	rec := env.do(t, http.MethodPost, "/api/upload-scraped/stream", map[string]any{
		"products":  sampleProducts(3),
		"batchSize": 1,
	})
	events := parseFrames(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("events = %d, want 3 progress + done", len(events))
	}
	for i, ev := range events[:3] {
		if ev.Type != models.EventProgress || ev.Upload == nil || ev.Upload.Completed+ev.Upload.Failed != i+1 {
			t.Fatalf("progress %d = %+v", i, ev)
		}
	}
	done := events[3]
	if done.Type != models.EventDone || done.Upload.Completed != 2 || done.Upload.Failed != 1 {
		t.Fatalf("done = %+v", done)
	}
}

func TestDeleteProducts(t *testing.T) {
	env := newTestEnv(t, nil, true, false)

	rec := env.do(t, http.MethodPost, "/api/products/delete", map[string]any{"productIds": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ids status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/products/delete", map[string]any{"productIds": []string{"1", "missing", "3"}})
	var body struct {
		Success bool                `json:"success"`
		Result  models.DeleteResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Result.Successful != 2 || body.Result.Failed != 1 || len(body.Result.Errors) != 1 {
		t.Fatalf("result = %+v", body.Result)
	}
}

func TestListAndGetProducts(t *testing.T) {
	env := newTestEnv(t, nil, true, false)

	rec := env.do(t, http.MethodGet, "/api/products?first=5&after=abc&query=vendor:Acme", nil)
	body := decodeJSON(t, rec)
	pageInfo := body["pageInfo"].(map[string]any)
	if pageInfo["hasNextPage"] != true || pageInfo["endCursor"] != "next" {
		t.Fatalf("pageInfo = %v", pageInfo)
	}
	products := body["products"].([]any)
	if products[0].(map[string]any)["title"] != "first=5 after=abc query=vendor:Acme" {
		t.Fatalf("query params not forwarded: %v", products[0])
	}

	rec = env.do(t, http.MethodGet, "/api/products/42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	body = decodeJSON(t, rec)
	scraped := body["scraped"].(map[string]any)
	variants := scraped["variants"].([]any)
	if scraped["title"] != "Mug" || variants[0].(map[string]any)["price"] != "9.99" {
		t.Fatalf("scraped = %v", scraped)
	}

	if rec := env.do(t, http.MethodGet, "/api/products/404", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing product status = %d", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, nil, false, false)
	products := sampleProducts(2)
	products = append(products, products[0])

	rec := env.do(t, http.MethodPost, "/api/export?format=csv", map[string]any{"products": products})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, ".csv") {
		t.Fatalf("content disposition = %q", cd)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2 deduplicated rows", len(records))
	}
	if records[1][2] != "Hello World" || records[1][8] != "a,b" {
		t.Fatalf("row = %v", records[1])
	}
}

func TestExportJSONLAndBadFormat(t *testing.T) {
	env := newTestEnv(t, nil, false, false)

	rec := env.do(t, http.MethodPost, "/api/export?format=jsonl", map[string]any{"products": sampleProducts(2)})
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	var rec0 models.ExportRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec0); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if rec0.Text != "Hello World" || rec0.Price != 19.99 {
		t.Fatalf("record = %+v", rec0)
	}

	if rec := env.do(t, http.MethodPost, "/api/export?format=xml", map[string]any{"products": sampleProducts(1)}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/export", map[string]any{"products": []any{}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty export status = %d", rec.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	disabled := newTestEnv(t, nil, false, false)
	if rec := disabled.do(t, http.MethodGet, "/api/history/scrapes", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled history status = %d", rec.Code)
	}

	env := newTestEnv(t, httpmock.NewStringResponder(404, ""), false, true)
	env.do(t, http.MethodPost, "/api/scrape", map[string]string{"domain": "shop.example.com"})

	rec := env.do(t, http.MethodGet, "/api/history/scrapes?limit=5", nil)
	body := decodeJSON(t, rec)
	runs := body["runs"].([]any)
	if len(runs) != 1 {
		t.Fatalf("runs = %v", runs)
	}
	run := runs[0].(map[string]any)
	if run["status"] != history.StatusFailed || run["errorCode"] != "store_not_found" {
		t.Fatalf("run = %v", run)
	}

	rec = env.do(t, http.MethodGet, "/api/history/uploads", nil)
	if body := decodeJSON(t, rec); len(body["runs"].([]any)) != 0 {
		t.Fatalf("uploads = %v", body["runs"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, httpmock.NewStringResponder(200, feedBody(1)), true, false)
	env.do(t, http.MethodPost, "/api/scrape", map[string]string{"domain": "shop.example.com"})
	env.do(t, http.MethodPost, "/api/upload-scraped", map[string]any{"products": sampleProducts(1)})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	text := rec.Body.String()
	for _, name := range []string{"storefront_scraper_requests_total", "storefront_upload_products_total"} {
		if !strings.Contains(text, name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}
