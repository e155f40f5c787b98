package db

import (
	"database/sql"
	"fmt"
	"time"
)

// VenueReport records one generated analytics report for a venue.
type VenueReport struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	StartDate string    `json:"start_date"` // YYYY-MM-DD
	EndDate   string    `json:"end_date"`   // YYYY-MM-DD
	Filepath  string    `json:"filepath"`
	Filename  string    `json:"filename"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateVenueReport creates a new report record and sets its ID.
func (db *DB) CreateVenueReport(report *VenueReport) error {
	result, err := db.Exec(
		`INSERT INTO venue_reports (venue_id, start_date, end_date, filepath, filename, run_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.VenueID, report.StartDate, report.EndDate,
		report.Filepath, report.Filename, report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to create venue report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	report.ID = id
	return nil
}

// GetVenueReport retrieves a report by ID.
func (db *DB) GetVenueReport(id int64) (*VenueReport, error) {
	var r VenueReport
	err := db.QueryRow(
		`SELECT id, venue_id, start_date, end_date, filepath, filename, run_id, created_at
		 FROM venue_reports WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.VenueID, &r.StartDate, &r.EndDate, &r.Filepath, &r.Filename, &r.RunID, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue report: %w", err)
	}
	return &r, nil
}

// RecentVenueReports retrieves the most recent N reports for a venue.
func (db *DB) RecentVenueReports(venueID int64, limit int) ([]VenueReport, error) {
	rows, err := db.Query(
		`SELECT id, venue_id, start_date, end_date, filepath, filename, run_id, created_at
		 FROM venue_reports WHERE venue_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		venueID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query venue reports: %w", err)
	}
	defer rows.Close()

	var reports []VenueReport
	for rows.Next() {
		var r VenueReport
		if err := rows.Scan(&r.ID, &r.VenueID, &r.StartDate, &r.EndDate,
			&r.Filepath, &r.Filename, &r.RunID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan venue report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return reports, nil
}

// DeleteVenueReport deletes a report record by ID.
func (db *DB) DeleteVenueReport(id int64) error {
	result, err := db.Exec(`DELETE FROM venue_reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete venue report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("report not found")
	}
	return nil
}
