package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/storefront-sync/convert"
	"github.com/aluiziolira/storefront-sync/models"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// ContentType returns the MIME type served for format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatJSONL:
		return "application/x-ndjson"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// NewWriter returns the writer for format on top of w. Closing the writer
// flushes but does not close w.
func NewWriter(format string, w io.Writer) (OutputWriter, error) {
	switch format {
	case FormatJSON:
		return newJSONArrayWriter(w, nil), nil
	case FormatJSONL:
		return newJSONLWriter(w, nil), nil
	case FormatCSV:
		return newCSVWriter(w, nil)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// CreateFileWriter creates filename (and its directory) and returns the
// writer for format on it.
func CreateFileWriter(format, filename string) (OutputWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", format, err)
	}

	var w OutputWriter
	switch format {
	case FormatJSON:
		w = newJSONArrayWriter(f, f)
	case FormatJSONL:
		w = newJSONLWriter(f, f)
	case FormatCSV:
		w, err = newCSVWriter(f, f)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// CSVWriter writes flat export records to CSV.
type CSVWriter struct {
	closer  io.Closer
	writer  *csv.Writer
	records int
	mu      sync.Mutex
}

var csvHeader = []string{"product_id", "title", "text", "price", "url", "image", "in_stock", "category", "tags"}

func newCSVWriter(w io.Writer, closer io.Closer) (*CSVWriter, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVWriter{closer: closer, writer: writer}, nil
}

// Write appends products to the CSV output.
func (cw *CSVWriter) Write(products []*models.ScrapedProduct) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, product := range products {
		rec := convert.ToExportRecord(product)
		record := []string{
			strconv.FormatInt(rec.ProductID, 10),
			rec.Title,
			rec.Text,
			strconv.FormatFloat(rec.Price, 'f', -1, 64),
			rec.URL,
			rec.Image,
			strconv.FormatBool(rec.InStock),
			rec.Category,
			strings.Join(rec.Tags, ","),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.records++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return closeIfSet(cw.closer)
}

// Validate ensures at least one record follows the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.records == 0 {
		return fmt.Errorf("csv output is empty")
	}
	return nil
}

// JSONLWriter writes one flat export record per line.
type JSONLWriter struct {
	closer  io.Closer
	writer  *bufio.Writer
	encoder *json.Encoder
	records int
	mu      sync.Mutex
}

func newJSONLWriter(w io.Writer, closer io.Closer) *JSONLWriter {
	buffer := bufio.NewWriter(w)
	return &JSONLWriter{
		closer:  closer,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}
}

// Write appends products in JSONL format.
func (jw *JSONLWriter) Write(products []*models.ScrapedProduct) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, product := range products {
		if err := jw.encoder.Encode(convert.ToExportRecord(product)); err != nil {
			return fmt.Errorf("encode jsonl record: %w", err)
		}
		jw.records++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return closeIfSet(jw.closer)
}

// Validate ensures the output has data.
func (jw *JSONLWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.records == 0 {
		return fmt.Errorf("jsonl output is empty")
	}
	return nil
}

// JSONArrayWriter writes the scraped products verbatim as one pretty-printed
// JSON array. The closing bracket is written by Close.
type JSONArrayWriter struct {
	closer  io.Closer
	writer  *bufio.Writer
	records int
	closed  bool
	mu      sync.Mutex
}

func newJSONArrayWriter(w io.Writer, closer io.Closer) *JSONArrayWriter {
	return &JSONArrayWriter{closer: closer, writer: bufio.NewWriter(w)}
}

// Write appends products to the array.
func (aw *JSONArrayWriter) Write(products []*models.ScrapedProduct) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	for _, product := range products {
		data, err := json.MarshalIndent(product, "  ", "  ")
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		sep := ",\n  "
		if aw.records == 0 {
			sep = "[\n  "
		}
		if _, err := aw.writer.WriteString(sep); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		if _, err := aw.writer.Write(data); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		aw.records++
	}

	if err := aw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close terminates the array and closes the underlying file.
func (aw *JSONArrayWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if !aw.closed {
		aw.closed = true
		tail := "\n]\n"
		if aw.records == 0 {
			tail = "[]\n"
		}
		if _, err := aw.writer.WriteString(tail); err != nil {
			return fmt.Errorf("write json tail: %w", err)
		}
	}
	if err := aw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return closeIfSet(aw.closer)
}

// Validate ensures the array is not empty.
func (aw *JSONArrayWriter) Validate() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if aw.records == 0 {
		return fmt.Errorf("json output is empty")
	}
	return nil
}

func closeIfSet(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
