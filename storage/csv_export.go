package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"imovel-scraper/models"
)

// CSVWriter dumps raw extraction records to a CSV file for inspection.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "source_url", "title", "price", "area", "bedrooms",
		"bathrooms", "parking", "neighborhood", "origin", "status", "scraped_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends raw records to the CSV file.
func (c *CSVWriter) WriteRaw(records []*models.RawProperty) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		row := []string{
			r.ID,
			r.SourceURL,
			r.Title,
			floatCol(r.Price),
			floatCol(r.Area),
			intCol(r.Bedrooms),
			intCol(r.Bathrooms),
			intCol(r.Parking),
			r.Neighborhood,
			string(r.Origin),
			string(r.Status),
			r.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func floatCol(v *float64) string {
	if v == nil {
		return ""
	}
	return strings.TrimSuffix(strconv.FormatFloat(*v, 'f', 2, 64), ".00")
}

func intCol(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
