package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Venue is one monitored location.
type Venue struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Capacity  int       `json:"capacity"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateVenue inserts a venue and sets its ID.
func (db *DB) CreateVenue(v *Venue) error {
	if v.Timezone == "" {
		v.Timezone = "UTC"
	}
	result, err := db.Exec(
		`INSERT INTO venues (name, location, capacity, timezone) VALUES (?, ?, ?, ?)`,
		v.Name, v.Location, v.Capacity, v.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	v.ID = id
	return nil
}

// GetVenue retrieves a venue by ID.
func (db *DB) GetVenue(id int64) (*Venue, error) {
	var v Venue
	err := db.QueryRow(
		`SELECT id, name, location, capacity, timezone, created_at FROM venues WHERE id = ?`,
		id,
	).Scan(&v.ID, &v.Name, &v.Location, &v.Capacity, &v.Timezone, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("venue not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return &v, nil
}

// GetVenueByName retrieves a venue by its unique name.
func (db *DB) GetVenueByName(name string) (*Venue, error) {
	var v Venue
	err := db.QueryRow(
		`SELECT id, name, location, capacity, timezone, created_at FROM venues WHERE name = ?`,
		name,
	).Scan(&v.ID, &v.Name, &v.Location, &v.Capacity, &v.Timezone, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("venue not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return &v, nil
}

// ListVenues returns all venues ordered by name.
func (db *DB) ListVenues() ([]Venue, error) {
	rows, err := db.Query(
		`SELECT id, name, location, capacity, timezone, created_at FROM venues ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	var venues []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Location, &v.Capacity, &v.Timezone, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return venues, nil
}

// UpdateVenue updates a venue's mutable fields.
func (db *DB) UpdateVenue(v *Venue) error {
	result, err := db.Exec(
		`UPDATE venues SET name = ?, location = ?, capacity = ?, timezone = ? WHERE id = ?`,
		v.Name, v.Location, v.Capacity, v.Timezone, v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("venue not found")
	}
	return nil
}
