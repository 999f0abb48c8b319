package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-local/internal/models"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, serverID *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService records the audit trail of manager actions.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent stores a new event.
func (s *EventService) CreateEvent(eventType, level, message string, serverID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		ServerID:  serverID,
		CreatedAt: time.Now().UTC(),
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, server_id, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.ServerID, event.CreatedAt)
	return err
}

// GetRecentEvents returns up to limit events, newest first.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, server_id, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var serverID sql.NullString
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &serverID, &event.CreatedAt); err != nil {
			return nil, err
		}
		if serverID.Valid {
			event.ServerID = &serverID.String
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
