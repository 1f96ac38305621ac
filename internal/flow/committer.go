package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kickbot/kick/internal/models"
)

// EntryStore is the persistence surface the committer needs.
type EntryStore interface {
	AddEntry(entry models.PracticeEntry) error
}

// Committer finalizes a completed wizard session into one persisted
// PracticeEntry. It never partially persists: the entry is validated before
// the store is touched, and a store failure leaves nothing written.
type Committer struct {
	store EntryStore
	now   func() time.Time
}

// NewCommitter creates a committer writing to the given store.
func NewCommitter(store EntryStore) *Committer {
	return &Committer{store: store, now: time.Now}
}

// Commit builds a PracticeEntry from the collected answers and persists it.
// Missing or empty required fields fail validation before any write.
func (c *Committer) Commit(userID string, answers map[string]string) (models.PracticeEntry, error) {
	entry := models.PracticeEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Timestamp: c.now().UTC(),
		Content:   answers["content"],
		Attitude:  answers["attitude"],
		Form:      answers["form"],
		Body:      answers["body"],
		Response:  answers["response"],
	}
	if err := entry.Validate(); err != nil {
		slog.Error("Committer Commit validation failed", "error", err, "user_id", userID)
		return models.PracticeEntry{}, err
	}
	if err := c.store.AddEntry(entry); err != nil {
		slog.Error("Committer Commit persistence failed", "error", err, "user_id", userID)
		return models.PracticeEntry{}, fmt.Errorf("failed to persist entry for %s: %w", userID, err)
	}
	slog.Debug("Committer Commit persisted entry", "user_id", userID, "entry_id", entry.ID)
	return entry, nil
}
