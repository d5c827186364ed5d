package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"hostfold/internal/domain"
)

// recordFile is the on-disk shape of a record drop file: either a bare
// list of records or a document with a records key
type recordFile struct {
	Records []domain.NormalizedRecord `json:"records" yaml:"records"`
}

// ParseRecordsFile reads normalized records from a JSON or YAML drop
// file. Both a bare array and a {records: [...]} document are accepted.
func ParseRecordsFile(path string) ([]domain.NormalizedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSONRecords(path, data)
	case ".yaml", ".yml":
		return parseYAMLRecords(path, data)
	}
	return nil, fmt.Errorf("unsupported record file type: %s", path)
}

func parseJSONRecords(path string, data []byte) ([]domain.NormalizedRecord, error) {
	var records []domain.NormalizedRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var doc recordFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc.Records, nil
}

func parseYAMLRecords(path string, data []byte) ([]domain.NormalizedRecord, error) {
	var records []domain.NormalizedRecord
	if err := yaml.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var doc recordFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc.Records, nil
}
