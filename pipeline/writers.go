package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopcrawl/shopcrawl/models"
)

// CSVWriter writes the catalog as plain CSV with the workbook's columns.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, &OutputWriteError{Path: filename, Err: err}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, &OutputWriteError{Path: filename, Err: err}
	}

	writer := csv.NewWriter(f)
	header := []string{"category", "name", "price", "url", "image", "description", "scraped_at"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, &OutputWriteError{Path: filename, Err: fmt.Errorf("write csv header: %w", err)}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, &OutputWriteError{Path: filename, Err: fmt.Errorf("flush csv header: %w", err)}
	}

	return &CSVWriter{
		path:   filename,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(catalog models.Catalog) error {
	for _, rec := range catalog {
		row := []string{
			rec.Category,
			rec.Name,
			rec.Price,
			rec.URL,
			rec.Image,
			rec.Description,
			rec.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.writer.Write(row); err != nil {
			return &OutputWriteError{Path: cw.path, Err: fmt.Errorf("write csv record: %w", err)}
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return &OutputWriteError{Path: cw.path, Err: fmt.Errorf("flush csv records: %w", err)}
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return &OutputWriteError{Path: cw.path, Err: fmt.Errorf("flush csv writer: %w", err)}
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file %s is empty", cw.path)
	}
	return nil
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
