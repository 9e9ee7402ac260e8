package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corpusforge/corpus-engine/internal/document"
)

// Report summarizes one batch run. Documents appear in completion order.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Strategy        string           `json:"strategy"`
	Workers         int              `json:"workers"`
	TotalDocuments  int              `json:"total_documents"`
	Succeeded       int              `json:"succeeded"`
	Failed          int              `json:"failed"`
	Skipped         int              `json:"skipped"`
	TotalDurationMs float64          `json:"total_duration_ms"`
	Documents       []DocumentReport `json:"documents"`
}

// DocumentReport is one document's terminal state in the batch report.
type DocumentReport struct {
	Source         string             `json:"source"`
	Success        bool               `json:"success"`
	Skipped        bool               `json:"skipped,omitempty"`
	SkipReason     string             `json:"skip_reason,omitempty"`
	FailedStage    string             `json:"failed_stage,omitempty"`
	Error          string             `json:"error,omitempty"`
	WordCount      int                `json:"word_count"`
	PageCount      int                `json:"page_count"`
	MentionCount   int                `json:"mention_count"`
	CanonicalCount int                `json:"canonical_count"`
	FactCount      int                `json:"fact_count"`
	StageTimingsMs map[string]float64 `json:"stage_timings_ms"`
}

// BuildReport assembles the batch report from completed documents.
func BuildReport(docs []*document.Document, strategy document.Strategy, workers int, elapsed time.Duration) *Report {
	r := &Report{
		GeneratedAt:     time.Now().UTC(),
		Strategy:        string(strategy),
		Workers:         workers,
		TotalDocuments:  len(docs),
		TotalDurationMs: float64(elapsed.Microseconds()) / 1000.0,
		Documents:       make([]DocumentReport, 0, len(docs)),
	}
	for _, doc := range docs {
		switch {
		case doc.Skipped:
			r.Skipped++
		case doc.Success:
			r.Succeeded++
		default:
			r.Failed++
		}
		timings := make(map[string]float64, len(doc.StageTimings))
		for stage, ms := range doc.StageTimings {
			timings[string(stage)] = ms
		}
		r.Documents = append(r.Documents, DocumentReport{
			Source:         doc.SourceName,
			Success:        doc.Success,
			Skipped:        doc.Skipped,
			SkipReason:     doc.SkipReason,
			FailedStage:    string(doc.FailedStage),
			Error:          doc.Error,
			WordCount:      doc.WordCount,
			PageCount:      doc.PageCount,
			MentionCount:   doc.MentionCount(),
			CanonicalCount: len(doc.NormalizedEntities),
			FactCount:      len(doc.SemanticFacts),
			StageTimingsMs: timings,
		})
	}
	return r
}

// Write persists the report as processing_report_<timestamp>.json in dir and
// returns the file path.
func (r *Report) Write(dir string) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	name := fmt.Sprintf("processing_report_%s.json", r.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
