package model

import "time"

// OutboxEvent is written in the same transaction as the business mutation
// that produced it. Once processed is set the row is never republished.
type OutboxEvent struct {
	ID        string    `db:"id"`
	EventType string    `db:"event_type"`
	Payload   []byte    `db:"payload"`
	Processed bool      `db:"processed"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
