package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"jobpulse/ingest-service/internal/model"
)

// backupFile is the on-disk shape of one collected page: the full raw
// payload plus its collection metadata, datetimes serialized as ISO-8601.
type backupFile struct {
	CollectionID string          `json:"collection_id"`
	Provider     string          `json:"provider"`
	Query        string          `json:"query"`
	Location     string          `json:"location,omitempty"`
	Page         int             `json:"page"`
	JobCount     int             `json:"job_count"`
	ResponseMS   int64           `json:"response_ms"`
	StatusCode   int             `json:"status_code"`
	CollectedAt  string          `json:"collected_at"`
	Payload      json.RawMessage `json:"payload"`
}

// backup writes the collection to
// <raw_data_dir>/<year>/<month>/<day>/<provider>_<id>.json.
func (c *Collector) backup(col *model.RawCollection) error {
	day := col.CollectedAt
	dir := filepath.Join(c.cfg.RawDataDir,
		day.Format("2006"), day.Format("01"), day.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	data, err := json.MarshalIndent(backupFile{
		CollectionID: col.ID,
		Provider:     col.Provider,
		Query:        col.Query,
		Location:     col.Location,
		Page:         col.Page,
		JobCount:     col.JobCount,
		ResponseMS:   col.ResponseMS,
		StatusCode:   col.StatusCode,
		CollectedAt:  col.CollectedAt.Format("2006-01-02T15:04:05Z07:00"),
		Payload:      col.Payload,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", col.Provider, col.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}
