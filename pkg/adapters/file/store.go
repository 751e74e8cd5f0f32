package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ddt-tool/ddt/pkg/domain"
)

// ExportStore implements ports.ExportStore using the local filesystem.
// It stores each case export as a JSON file in a configured directory.
type ExportStore struct {
	BasePath string
}

// NewExportStore creates a store. If basePath is empty, it defaults to ".ddt/cases".
func NewExportStore(basePath string) *ExportStore {
	if basePath == "" {
		basePath = filepath.Join(".ddt", "cases")
	}
	return &ExportStore{BasePath: basePath}
}

// Save persists the export atomically: temp file, fsync, rename.
func (s *ExportStore) Save(ctx context.Context, export *domain.CaseExport) error {
	if export == nil || export.CaseID == "" {
		return fmt.Errorf("caseID cannot be empty")
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure case directory: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal case export: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+export.CaseID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(export.CaseID)
	// os.Rename does not replace an existing file on Windows.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing case file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads a case export.
func (s *ExportStore) Load(ctx context.Context, caseID string) (*domain.CaseExport, error) {
	if caseID == "" {
		return nil, fmt.Errorf("caseID cannot be empty")
	}
	data, err := os.ReadFile(s.path(caseID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	var export domain.CaseExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case export: %w", err)
	}
	return &export, nil
}

// Delete removes the case file.
func (s *ExportStore) Delete(ctx context.Context, caseID string) error {
	if caseID == "" {
		return fmt.Errorf("caseID cannot be empty")
	}
	if err := os.Remove(s.path(caseID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete case file: %w", err)
	}
	return nil
}

// List returns all stored case ids.
func (s *ExportStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || len(name) > 4 && name[:4] == "tmp-" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}

func (s *ExportStore) path(caseID string) string {
	return filepath.Join(s.BasePath, caseID+".json")
}
