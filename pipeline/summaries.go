package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aluiziolira/campaign-insights/models"
)

// WriteSummaries exports the summary tables as one indented JSON array, in
// table order, for the presentation layer. The file is replaced atomically.
func WriteSummaries(path string, tables []models.SummaryTable) error {
	staged, err := stageSummaries(path, tables)
	if err != nil {
		return err
	}
	if err := staged.commit(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// stageSummaries writes the JSON next to path without publishing it.
func stageSummaries(path string, tables []models.SummaryTable) (*stagedFile, error) {
	if tables == nil {
		tables = []models.SummaryTable{}
	}
	data, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return nil, &WriteError{Path: path, Err: fmt.Errorf("encode summaries: %w", err)}
	}
	data = append(data, '\n')

	staged, err := createStaged(path)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	if _, err := staged.Write(data); err != nil {
		staged.discard()
		return nil, &WriteError{Path: path, Err: err}
	}
	return staged, nil
}

// ReadSummaries loads tables previously written by WriteSummaries.
func ReadSummaries(path string) ([]models.SummaryTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summaries: %w", err)
	}
	var tables []models.SummaryTable
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}
	return tables, nil
}
