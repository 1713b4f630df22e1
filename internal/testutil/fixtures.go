package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"karsync/internal/models"
)

// CreateTestTransfer creates a running download record with default values
func CreateTestTransfer(overrides ...func(*models.TransferRecord)) *models.TransferRecord {
	now := time.Now()
	record := &models.TransferRecord{
		Kind:        models.TransferKindDownload,
		Source:      "https://drive.google.com/drive/folders/ROOT",
		Destination: "/music",
		Remote:      "gdrive_unofficial_neuro_kar",
		Mode:        "sync",
		Selection:   models.SelectAll(),
		Status:      models.TransferStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(record)
	}

	return record
}

// TransferParams returns request parameters pointing at dest
func TransferParams(dest string, overrides ...func(*models.TransferParams)) models.TransferParams {
	params := models.TransferParams{
		Source:      "ROOT",
		Destination: dest,
		Remote:      "gdrive_unofficial_neuro_kar",
	}

	for _, override := range overrides {
		override(&params)
	}

	return params
}

// AppendLog appends lines to the daemon log at path
func AppendLog(t *testing.T, path string, lines ...string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create log dir: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			t.Fatalf("failed to write log: %v", err)
		}
	}
}
