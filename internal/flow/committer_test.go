package flow

import (
	"errors"
	"testing"

	"github.com/kickbot/kick/internal/models"
)

func fullAnswers() map[string]string {
	return map[string]string{
		"content":  "A",
		"attitude": "B",
		"form":     "C",
		"body":     "D",
		"response": "E",
	}
}

func TestCommitterPersistsCompleteEntry(t *testing.T) {
	store := &failableEntryStore{}
	c := NewCommitter(store)

	entry, err := c.Commit("u1", fullAnswers())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("entry id not assigned")
	}
	if entry.Timestamp.IsZero() {
		t.Error("entry timestamp not assigned")
	}
	if entry.UserID != "u1" || entry.Content != "A" || entry.Response != "E" {
		t.Errorf("entry = %+v", entry)
	}
	if len(store.all()) != 1 {
		t.Errorf("store holds %d entries, want 1", len(store.all()))
	}
}

func TestCommitterRejectsMissingField(t *testing.T) {
	store := &failableEntryStore{}
	c := NewCommitter(store)

	answers := fullAnswers()
	delete(answers, "body")

	_, err := c.Commit("u1", answers)
	if !errors.Is(err, models.ErrIncompleteEntry) {
		t.Fatalf("Commit = %v, want ErrIncompleteEntry", err)
	}
	if len(store.all()) != 0 {
		t.Error("partial entry reached the store")
	}
}

func TestCommitterPropagatesStoreFailure(t *testing.T) {
	store := &failableEntryStore{}
	store.setFail(errors.New("connection reset"))
	c := NewCommitter(store)

	_, err := c.Commit("u1", fullAnswers())
	if err == nil {
		t.Fatal("Commit succeeded despite store failure")
	}
	if len(store.all()) != 0 {
		t.Error("entry persisted despite store failure")
	}
}
