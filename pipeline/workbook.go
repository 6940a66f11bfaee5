package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/parser"
)

// OutputWriteError indicates the destination workbook could not be written.
// It always aborts the run; there is no silent fallback path.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("output %s unwritable: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

var catalogHeaders = []string{"Category", "Catalogue", "Price", "URL", "Image", "Description"}

// XLSXWriter renders the catalog into a two-sheet workbook: a styled,
// filterable Catalog sheet and a Summary sheet with a category chart. The
// workbook is built in memory and saved on Close via a temp file rename, so
// a failed run never clobbers an existing file at the destination.
type XLSXWriter struct {
	path    string
	symbol  string
	catalog models.Catalog
}

// NewXLSXWriter initialises a workbook writer for path.
func NewXLSXWriter(path, currencySymbol string) (*XLSXWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, &OutputWriteError{Path: path, Err: err}
	}
	return &XLSXWriter{path: path, symbol: currencySymbol}, nil
}

// Write appends records to the pending workbook.
func (xw *XLSXWriter) Write(catalog models.Catalog) error {
	xw.catalog = append(xw.catalog, catalog...)
	return nil
}

// Close builds the workbook and atomically moves it into place.
func (xw *XLSXWriter) Close() error {
	file, err := xw.build()
	if err != nil {
		return &OutputWriteError{Path: xw.path, Err: err}
	}
	defer file.Close()

	dir := filepath.Dir(xw.path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.xlsx")
	if err != nil {
		return &OutputWriteError{Path: xw.path, Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := file.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return &OutputWriteError{Path: xw.path, Err: err}
	}
	if err := os.Rename(tmpPath, xw.path); err != nil {
		os.Remove(tmpPath)
		return &OutputWriteError{Path: xw.path, Err: err}
	}
	return nil
}

// Validate ensures the workbook landed on disk.
func (xw *XLSXWriter) Validate() error {
	info, err := os.Stat(xw.path)
	if err != nil {
		return fmt.Errorf("stat workbook: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("workbook %s is empty", xw.path)
	}
	return nil
}

const (
	catalogSheet = "Catalog"
	summarySheet = "Summary"
)

func (xw *XLSXWriter) build() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"004B8F"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}

	numFmt := xw.symbol + "#,##0"
	currencyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, err
	}

	for i, header := range catalogHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(catalogSheet, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(catalogSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for i, rec := range xw.catalog {
		row := i + 2
		if err := f.SetCellValue(catalogSheet, cellName(1, row), rec.Category); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(catalogSheet, cellName(2, row), rec.Name); err != nil {
			return nil, err
		}

		// Currency-styled number when the price parses, plain text otherwise.
		priceCell := cellName(3, row)
		if amount, ok := parser.PriceAmount(rec.Price); ok {
			if err := f.SetCellValue(catalogSheet, priceCell, amount); err != nil {
				return nil, err
			}
			if err := f.SetCellStyle(catalogSheet, priceCell, priceCell, currencyStyle); err != nil {
				return nil, err
			}
		} else if err := f.SetCellValue(catalogSheet, priceCell, rec.Price); err != nil {
			return nil, err
		}

		urlCell := cellName(4, row)
		if err := f.SetCellValue(catalogSheet, urlCell, "Link"); err != nil {
			return nil, err
		}
		if err := f.SetCellHyperLink(catalogSheet, urlCell, rec.URL, "External"); err != nil {
			return nil, err
		}

		if err := f.SetCellValue(catalogSheet, cellName(5, row), rec.Image); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(catalogSheet, cellName(6, row), rec.Description); err != nil {
			return nil, err
		}
	}

	widths := []float64{15, 45, 12, 45, 40, 60}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(catalogSheet, col, col, width); err != nil {
			return nil, err
		}
	}

	if len(xw.catalog) > 0 {
		tableRange := fmt.Sprintf("A1:F%d", len(xw.catalog)+1)
		if err := f.AddTable(catalogSheet, &excelize.Table{
			Range:     tableRange,
			Name:      "CatalogTable",
			StyleName: "TableStyleMedium9",
		}); err != nil {
			return nil, err
		}
	} else if err := f.AutoFilter(catalogSheet, "A1:F1", nil); err != nil {
		return nil, err
	}

	if err := f.SetPanes(catalogSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	if err := xw.buildSummary(f, headerStyle); err != nil {
		return nil, err
	}
	return f, nil
}

func (xw *XLSXWriter) buildSummary(f *excelize.File, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	for i, header := range []string{"Category", "Products"} {
		cell := cellName(i+1, 1)
		if err := f.SetCellValue(summarySheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(summarySheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	summary := models.Summarize(xw.catalog)
	for i, entry := range summary {
		row := i + 2
		if err := f.SetCellValue(summarySheet, cellName(1, row), entry.Category); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, cellName(2, row), entry.Count); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 12); err != nil {
		return err
	}

	if len(summary) == 0 {
		return nil
	}
	last := len(summary) + 1
	return f.AddChart(summarySheet, "D2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", summarySheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", summarySheet, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", summarySheet, last),
		}},
		Title: []excelize.RichTextRun{{Text: "Catalogue size by category"}},
	})
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
