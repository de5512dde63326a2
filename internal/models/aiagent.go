package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AI agent modes. Only the chatbot mode is handled by the deterministic
// auto-responder; ai_agent mode is delegated to an external LLM integration.
const (
	AIModeChatbot = "chatbot"
	AIModeAgent   = "ai_agent"
)

// AIAgentConfig holds the tenant-scoped chatbot configuration consumed by the
// auto-responder. Read-only from the pipeline's perspective.
type AIAgentConfig struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	TenantID       string    `gorm:"uniqueIndex;not null" json:"tenant_id"`
	Mode           string    `gorm:"default:'chatbot'" json:"mode"`
	IsEnabled      bool      `json:"is_enabled"`
	WelcomeMessage string    `json:"welcome_message,omitempty"`
	ResponseDelay  int       `gorm:"default:3" json:"response_delay"`
	SystemPrompt   string    `json:"system_prompt,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a *AIAgentConfig) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Mode == "" {
		a.Mode = AIModeChatbot
	}
	if a.ResponseDelay == 0 {
		a.ResponseDelay = 3
	}
	return nil
}
