package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/storefront-sync/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return store
}

func TestScrapeRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, domain := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		run := NewScrapeRun(domain, base.Add(time.Duration(i)*time.Minute), &models.ScrapeResult{
			Domain:   domain,
			Products: make([]*models.ScrapedProduct, i+1),
			Pages:    1,
		}, "", nil)
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.RecordScrape(ctx, run); err != nil {
			t.Fatalf("record: %v", err)
		}
		if run.ID == "" {
			t.Fatalf("expected an id to be assigned")
		}
	}

	runs, err := store.ListScrapes(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Domain != "c.example.com" || runs[1].Domain != "b.example.com" {
		t.Fatalf("order = %s, %s", runs[0].Domain, runs[1].Domain)
	}
	if runs[0].Products != 3 || runs[0].Status != StatusSuccess {
		t.Fatalf("run = %+v", runs[0])
	}
}

func TestScrapeRunRecordsFailureAndWarnings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ok := NewScrapeRun("shop.example.com", time.Now(), &models.ScrapeResult{
		Pages:    2,
		Warnings: []string{"storefront refused page 3"},
	}, "", nil)
	failed := NewScrapeRun("gone.example.com", time.Now().Add(time.Second), nil, "store_not_found", errors.New("store not found: gone.example.com"))

	for _, run := range []*ScrapeRun{ok, failed} {
		if err := store.RecordScrape(ctx, run); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	runs, err := store.ListScrapes(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	byDomain := map[string]ScrapeRun{}
	for _, r := range runs {
		byDomain[r.Domain] = r
	}
	if got := byDomain["shop.example.com"].Warnings; len(got) != 1 || got[0] != "storefront refused page 3" {
		t.Fatalf("warnings = %v", got)
	}
	gone := byDomain["gone.example.com"]
	if gone.Status != StatusFailed || gone.ErrorCode != "store_not_found" || gone.Error == "" {
		t.Fatalf("failed run = %+v", gone)
	}
}

func TestUploadRunKeepsFailures(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := NewUploadRun("dest.myshopify.com", time.Now(), models.UploadProgress{
		Total:     3,
		Completed: 2,
		Failed:    1,
		Errors:    []models.UploadFailure{{ProductTitle: "Product 2", Error: "productCreate: title: taken"}},
	}, nil)
	if err := store.RecordUpload(ctx, run); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.ListUploads(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID || got.Completed != 2 || got.Failed != 1 {
		t.Fatalf("run = %+v", got)
	}
	if len(got.Failures) != 1 || got.Failures[0].ProductTitle != "Product 2" {
		t.Fatalf("failures = %+v", got.Failures)
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{0: defaultListLimit, -5: defaultListLimit, 10: 10, 1000: maxListLimit}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
