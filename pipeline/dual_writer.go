package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aluiziolira/campaign-insights/models"
)

// DualWriter outputs to both CSV and JSONL formats.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	mu         sync.Mutex
}

// NewDualWriter creates a writer pair for the given file names.
func NewDualWriter(csvFilename, jsonFilename string) *DualWriter {
	return &DualWriter{
		csvWriter:  NewCSVWriter(csvFilename),
		jsonWriter: NewJSONWriter(jsonFilename),
	}
}

// JSONCompanion derives the JSONL file name that sits next to a CSV snapshot.
func JSONCompanion(csvFilename string) string {
	return strings.TrimSuffix(csvFilename, ".csv") + ".jsonl"
}

// Write writes records to both formats.
func (dw *DualWriter) Write(records []models.CleanedRecord) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(records); err != nil {
		return fmt.Errorf("csv write failed: %w", err)
	}
	if err := dw.jsonWriter.Write(records); err != nil {
		return fmt.Errorf("json write failed: %w", err)
	}
	return nil
}

// Close publishes both files. A failed CSV close drops the JSON file too.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Close(); err != nil {
		return errors.Join(
			fmt.Errorf("csv close failed: %w", err),
			dw.jsonWriter.Abort(),
		)
	}
	if err := dw.jsonWriter.Close(); err != nil {
		return fmt.Errorf("json close failed: %w", err)
	}
	return nil
}

// Abort discards both files.
func (dw *DualWriter) Abort() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	return errors.Join(dw.csvWriter.Abort(), dw.jsonWriter.Abort())
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("csv validation failed: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("json validation failed: %w", err))
	}
	return errors.Join(errs...)
}
