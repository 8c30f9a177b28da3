package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/person-intel/internal/types"
)

// ErrReportNotFound is returned when no report exists for a request id.
var ErrReportNotFound = errors.New("report not found")

// StoredReport is one persisted intelligence report row.
type StoredReport struct {
	RequestID string
	Name      string
	RiskLevel types.RiskLevel
	Report    *types.PersonIntelligence
	CreatedAt time.Time
}

// SaveReport stores a finished report, replacing any earlier report for the
// same request id.
func (s *Store) SaveReport(ctx context.Context, requestID string, report *types.PersonIntelligence) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO intelligence_reports (request_id, subject_name, risk_level, report)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (request_id) DO UPDATE SET subject_name = $2, risk_level = $3, report = $4, created_at = NOW()`,
		requestID, report.Name, string(report.RiskLevel), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves a persisted report by request id.
func (s *Store) GetReport(ctx context.Context, requestID string) (*StoredReport, error) {
	var (
		stored  StoredReport
		level   string
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT request_id, subject_name, risk_level, report, created_at
		 FROM intelligence_reports
		 WHERE request_id = $1`,
		requestID,
	).Scan(&stored.RequestID, &stored.Name, &level, &payload, &stored.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	stored.RiskLevel = types.RiskLevel(level)
	stored.Report = &types.PersonIntelligence{}
	if err := json.Unmarshal(payload, stored.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &stored, nil
}

// ListReports returns recent reports for a subject name, newest first.
func (s *Store) ListReports(ctx context.Context, subjectName string, limit int) ([]StoredReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT request_id, subject_name, risk_level, report, created_at
		 FROM intelligence_reports
		 WHERE subject_name = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		subjectName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []StoredReport
	for rows.Next() {
		var (
			stored  StoredReport
			level   string
			payload []byte
		)
		if err := rows.Scan(&stored.RequestID, &stored.Name, &level, &payload, &stored.CreatedAt); err != nil {
			return nil, err
		}
		stored.RiskLevel = types.RiskLevel(level)
		stored.Report = &types.PersonIntelligence{}
		if err := json.Unmarshal(payload, stored.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		reports = append(reports, stored)
	}
	return reports, rows.Err()
}
