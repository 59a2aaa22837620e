package simulation

import (
	"database/sql"
	"fmt"

	"epi-model/model"

	_ "github.com/mattn/go-sqlite3"
)

// EventDB stores event records in sqlite; records are buffered and written
// in one transaction per flush
type EventDB struct {
	db        *sql.DB
	cacheSize int
	cache     []*model.EventRecord
}

var eventSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		person_id INTEGER NOT NULL,
		time REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS infection_events (
		event_id INTEGER PRIMARY KEY,
		location_id INTEGER NOT NULL,
		location_type_id INTEGER NOT NULL,
		age INTEGER NOT NULL,
		phase TEXT NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS phase_change_events (
		event_id INTEGER PRIMARY KEY,
		from_phase TEXT NOT NULL,
		to_phase TEXT NOT NULL,
		location_id INTEGER NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS death_events (
		event_id INTEGER PRIMARY KEY,
		location_id INTEGER NOT NULL,
		age INTEGER NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS policy_events (
		event_id INTEGER PRIMARY KEY,
		policy TEXT NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS events_time ON events (time)`,
	"PRAGMA foreign_keys = ON",
}

// OpenEventDB opens or creates the database file
func OpenEventDB(filename string, cacheSize int) (*EventDB, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range eventSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &EventDB{
		db:        db,
		cacheSize: max(cacheSize, 1),
		cache:     make([]*model.EventRecord, 0, max(cacheSize, 1)),
	}, nil
}

// Close flushes the cache and closes the connection
func (edb *EventDB) Close() error {
	flushErr := edb.Flush()
	if err := edb.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// StoreEvent buffers an event, flushing when the cache is full
func (edb *EventDB) StoreEvent(event *model.EventRecord) error {
	edb.cache = append(edb.cache, event)
	if len(edb.cache) >= edb.cacheSize {
		return edb.Flush()
	}
	return nil
}

// Flush writes the buffered events in a single transaction
func (edb *EventDB) Flush() (err error) {
	if len(edb.cache) == 0 {
		return nil
	}

	tx, err := edb.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, event := range edb.cache {
		if err = insertEvent(tx, event); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	edb.cache = edb.cache[:0]
	return nil
}

func insertEvent(tx *sql.Tx, event *model.EventRecord) error {
	result, err := tx.Exec(
		"INSERT INTO events (type, person_id, time) VALUES (?, ?, ?)",
		event.Type, event.PersonID, event.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	eventID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	switch body := event.Body.(type) {
	case model.InfectionEventBody:
		_, err = tx.Exec(
			"INSERT INTO infection_events (event_id, location_id, location_type_id, age, phase) VALUES (?, ?, ?, ?, ?)",
			eventID, body.LocationID, body.LocationTypeID, body.Age, body.Phase,
		)
	case model.PhaseChangeEventBody:
		_, err = tx.Exec(
			"INSERT INTO phase_change_events (event_id, from_phase, to_phase, location_id) VALUES (?, ?, ?, ?)",
			eventID, body.From, body.To, body.LocationID,
		)
	case model.DeathEventBody:
		_, err = tx.Exec(
			"INSERT INTO death_events (event_id, location_id, age) VALUES (?, ?, ?)",
			eventID, body.LocationID, body.Age,
		)
	case model.PolicyEventBody:
		_, err = tx.Exec(
			"INSERT INTO policy_events (event_id, policy) VALUES (?, ?)",
			eventID, body.Policy,
		)
	default:
		return fmt.Errorf("unknown event body %T for %s", event.Body, event.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", event.Type, err)
	}
	return nil
}

// GetEvents loads every stored event ordered by time
func (edb *EventDB) GetEvents() ([]*model.EventRecord, error) {
	rows, err := edb.db.Query(`
		SELECT e.id, e.type, e.person_id, e.time FROM events e
		ORDER BY e.time ASC, e.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	type row struct {
		id    int64
		event *model.EventRecord
	}
	var loaded []row
	for rows.Next() {
		r := row{event: &model.EventRecord{}}
		if err := rows.Scan(&r.id, &r.event.Type, &r.event.PersonID, &r.event.Time); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		loaded = append(loaded, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	events := make([]*model.EventRecord, len(loaded))
	for i, r := range loaded {
		if err := edb.loadBody(r.id, r.event); err != nil {
			return nil, err
		}
		events[i] = r.event
	}
	return events, nil
}

func (edb *EventDB) loadBody(id int64, event *model.EventRecord) error {
	var err error
	switch event.Type {
	case model.EventInfection:
		var body model.InfectionEventBody
		err = edb.db.QueryRow(
			"SELECT location_id, location_type_id, age, phase FROM infection_events WHERE event_id = ?", id,
		).Scan(&body.LocationID, &body.LocationTypeID, &body.Age, &body.Phase)
		event.Body = body
	case model.EventPhaseChange:
		var body model.PhaseChangeEventBody
		err = edb.db.QueryRow(
			"SELECT from_phase, to_phase, location_id FROM phase_change_events WHERE event_id = ?", id,
		).Scan(&body.From, &body.To, &body.LocationID)
		event.Body = body
	case model.EventDeath:
		var body model.DeathEventBody
		err = edb.db.QueryRow(
			"SELECT location_id, age FROM death_events WHERE event_id = ?", id,
		).Scan(&body.LocationID, &body.Age)
		event.Body = body
	case model.EventPolicyActivated, model.EventPolicyDeactivated:
		var body model.PolicyEventBody
		err = edb.db.QueryRow(
			"SELECT policy FROM policy_events WHERE event_id = ?", id,
		).Scan(&body.Policy)
		event.Body = body
	}
	if err != nil {
		return fmt.Errorf("failed to scan %s event %d: %w", event.Type, id, err)
	}
	return nil
}

// CountEvents returns the number of stored events of a type
func (edb *EventDB) CountEvents(eventType string) (int, error) {
	var n int
	err := edb.db.QueryRow("SELECT COUNT(*) FROM events WHERE type = ?", eventType).Scan(&n)
	return n, err
}
