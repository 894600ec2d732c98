package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/storefront-sync/models"
)

// MultiWriter fans every batch out to several writers, e.g. a JSON snapshot
// and a JSONL feed of the same run.
type MultiWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter opens one file writer per format, named base + "." + format.
func NewMultiWriter(base string, formats ...string) (*MultiWriter, error) {
	mw := &MultiWriter{}
	for _, format := range formats {
		w, err := CreateFileWriter(format, base+"."+format)
		if err != nil {
			mw.Close()
			return nil, fmt.Errorf("create %s writer: %w", format, err)
		}
		mw.writers = append(mw.writers, w)
	}
	return mw, nil
}

// Write writes products to every writer.
func (mw *MultiWriter) Write(products []*models.ScrapedProduct) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		if err := w.Write(products); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
