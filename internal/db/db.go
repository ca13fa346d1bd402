package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tripviz/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Source reads stations and trips straight from the matching backend's
// Postgres database. It never writes.
type Source struct {
	db    *sql.DB
	limit int
}

func NewSource(db *sql.DB, limit int) *Source {
	if limit <= 0 {
		limit = 50
	}
	return &Source{db: db, limit: limit}
}

func (s *Source) Stations(ctx context.Context) ([]model.Station, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station_id, COALESCE(name, ''), lat, lng FROM stations ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var stations []model.Station
	for rows.Next() {
		var st model.Station
		if err := rows.Scan(&st.StationID, &st.Name, &st.Lat, &st.Lng); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// Trips returns live trips plus those completed within the last hour, newest
// first, mirroring what the REST backend serves.
func (s *Source) Trips(ctx context.Context) ([]model.Trip, error) {
	q := `
SELECT trip_id, driver_id, COALESCE(rider_ids, ''), origin_station, COALESCE(destination, ''),
       status, start_time, end_time, seats_reserved
FROM trips
WHERE status != 'completed' OR end_time > (EXTRACT(EPOCH FROM NOW()) * 1000 - 3600000)
ORDER BY start_time DESC
LIMIT $1`
	rows, err := s.db.QueryContext(ctx, q, s.limit)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		var (
			t          model.Trip
			riders     string
			status     string
			start, end sql.NullInt64
			seats      sql.NullInt32
		)
		if err := rows.Scan(&t.TripID, &t.DriverID, &riders, &t.OriginStation, &t.Destination,
			&status, &start, &end, &seats); err != nil {
			return nil, err
		}
		t.Status = model.Status(status)
		t.RiderIDs = SplitRiderIDs(riders)
		if start.Valid {
			t.StartTime = &start.Int64
		}
		if end.Valid {
			t.EndTime = &end.Int64
		}
		if seats.Valid {
			n := int(seats.Int32)
			t.SeatsReserved = &n
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// SplitRiderIDs parses the comma-joined rider_ids column.
func SplitRiderIDs(s string) []string {
	ids := []string{}
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
