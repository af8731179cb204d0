// Package store persists job reports to reports/{jobId}.json on the local
// filesystem (mandatory) and, when configured, secondary tiers (spec.md §6
// "Persisted state"). Secondary-tier failures are logged, never fatal:
// the local write is the tier a caller can depend on.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/job"
)

// SecondaryTier writes a report's JSON payload to a supplementary store
// (GCS, Postgres) and reports the resulting URI or identifier.
type SecondaryTier interface {
	PutReport(ctx context.Context, jobID string, data []byte) (string, error)
}

// ReportStore implements job.ReportStore, writing the mandatory local copy
// first and fanning out to any configured secondary tiers afterward.
type ReportStore struct {
	baseDir    string
	secondary  []SecondaryTier
	log        *zap.Logger
}

// New builds a ReportStore rooted at baseDir, creating it if necessary.
// Grounded on the teacher's internal/storage/local/blob_store.go
// (path-traversal-safe local writer). New only checks that baseDir exists
// or can be created; it does not probe it for writability.
func New(baseDir string, secondary []SecondaryTier, log *zap.Logger) (*ReportStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("report base directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create report directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat report directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("report base path is not a directory")
	}

	return &ReportStore{baseDir: baseDir, secondary: secondary, log: log}, nil
}

// SaveReport implements job.ReportStore.
func (s *ReportStore) SaveReport(ctx context.Context, jobID string, report job.Report) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("job id is required")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := s.writeLocal(jobID, data); err != nil {
		return err
	}

	for _, tier := range s.secondary {
		if _, err := tier.PutReport(ctx, jobID, data); err != nil {
			s.log.Warn("store: secondary tier write failed", zap.String("jobId", jobID), zap.Error(err))
		}
	}
	return nil
}

func (s *ReportStore) writeLocal(jobID string, data []byte) error {
	fullPath := filepath.Join(s.baseDir, fmt.Sprintf("%s.json", jobID))

	cleanBase := filepath.Clean(s.baseDir)
	cleanFull := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFull, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected for job id %q", jobID)
	}

	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

// LoadReport reads a previously persisted report back from the local tier.
func (s *ReportStore) LoadReport(jobID string) (job.Report, error) {
	fullPath := filepath.Join(s.baseDir, fmt.Sprintf("%s.json", jobID))
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return job.Report{}, fmt.Errorf("read report file: %w", err)
	}
	var report job.Report
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&report); err != nil {
		return job.Report{}, fmt.Errorf("decode report file: %w", err)
	}
	return report, nil
}
