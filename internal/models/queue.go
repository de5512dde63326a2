package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Queue is a named routing bucket for conversations. The {{fila}} placeholder
// in chatbot templates resolves through the conversation's queue.
type Queue struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (q *Queue) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
