package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopcrawl/shopcrawl/models"
)

// DualWriter pairs the workbook with a CSV sidecar.
type DualWriter struct {
	xlsx *XLSXWriter
	csv  *CSVWriter
}

// NewDualWriter creates writers for both the workbook and a CSV file
// derived from the workbook path.
func NewDualWriter(xlsxPath, currencySymbol string) (*DualWriter, error) {
	xlsxWriter, err := NewXLSXWriter(xlsxPath, currencySymbol)
	if err != nil {
		return nil, err
	}

	csvPath := strings.TrimSuffix(xlsxPath, ".xlsx") + ".csv"
	csvWriter, err := NewCSVWriter(csvPath)
	if err != nil {
		return nil, err
	}

	return &DualWriter{
		xlsx: xlsxWriter,
		csv:  csvWriter,
	}, nil
}

// Write forwards records to both outputs.
func (dw *DualWriter) Write(catalog models.Catalog) error {
	if err := dw.xlsx.Write(catalog); err != nil {
		return err
	}
	return dw.csv.Write(catalog)
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	var errs []error
	if err := dw.xlsx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := dw.csv.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close outputs: %v", errs)
	}
	return nil
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.xlsx.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := dw.csv.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}
