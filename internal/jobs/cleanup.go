package jobs

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// CleanupJob closes open conversations that have been idle past the TTL.
// Keeps the partial uniqueness index from pinning contacts to forgotten
// conversations forever.
type CleanupJob struct {
	store    storage.Store
	notifier realtime.Notifier
	log      *logrus.Logger

	ttl      time.Duration
	interval time.Duration
	done     chan struct{}
}

// NewCleanupJob creates the stale conversation cleaner. TTL comes from
// CONVERSATION_TTL_HOURS (default 72).
func NewCleanupJob(store storage.Store, notifier realtime.Notifier, log *logrus.Logger) *CleanupJob {
	ttlHours := 72
	if raw := os.Getenv("CONVERSATION_TTL_HOURS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			ttlHours = parsed
		}
	}

	return &CleanupJob{
		store:    store,
		notifier: notifier,
		log:      log,
		ttl:      time.Duration(ttlHours) * time.Hour,
		interval: time.Hour,
		done:     make(chan struct{}),
	}
}

// Start launches the ticker loop.
func (j *CleanupJob) Start() {
	j.log.Infof("🧹 Conversation cleanup job started (TTL %s)", j.ttl)
	go j.run()
}

// Stop ends the ticker loop.
func (j *CleanupJob) Stop() {
	close(j.done)
	j.log.Info("⏹️ Conversation cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.done:
			return
		}
	}
}

func (j *CleanupJob) sweep() {
	stale, err := j.store.GetStaleOpenConversations(time.Now().Add(-j.ttl))
	if err != nil {
		j.log.Errorf("❌ Cleanup sweep failed: %v", err)
		return
	}

	for _, conv := range stale {
		if err := j.store.UpdateConversationStatus(conv.ID, models.ConversationStatusClosed); err != nil {
			j.log.Errorf("❌ Failed to close stale conversation %s: %v", conv.ID, err)
			continue
		}
		conv.Status = models.ConversationStatusClosed
		j.notifier.NotifyConversationStatusChange(conv)
		j.log.Infof("🧹 Closed stale conversation %s (%s)", conv.ID, conv.ContactPhone)
	}

	if len(stale) > 0 {
		j.log.Infof("🧹 Cleanup sweep closed %d conversations", len(stale))
	}
}
