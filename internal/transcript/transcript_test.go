package transcript

import (
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v3"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	s := openTestStore(t)

	got := s.Load("u1")
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty transcript, got %d messages", len(got))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	msgs := []Message{
		NewMessage(SenderUser, "hello", now),
		NewMessage(SenderAI, "hi, how can I help?", now.Add(2*time.Second)),
	}

	if err := s.Save("u1", msgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Load("u1")
	if len(got) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(got))
	}
	for i := range msgs {
		if got[i] != msgs[i] {
			t.Errorf("message %d mismatch: got %+v want %+v", i, got[i], msgs[i])
		}
	}
}

func TestSaveIsScopedByUser(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	if err := s.Save("u1", []Message{NewMessage(SenderUser, "mine", now)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if got := s.Load("u2"); len(got) != 0 {
		t.Fatalf("expected empty transcript for other user, got %d messages", len(got))
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	user := NewMessage(SenderUser, "I have a headache", now)
	if err := s.Append("u1", user); err != nil {
		t.Fatalf("append user message: %v", err)
	}

	ai := NewMessage(SenderAI, "How long has it lasted?", now.Add(time.Second))
	if err := s.Append("u1", ai); err != nil {
		t.Fatalf("append ai message: %v", err)
	}

	got := s.Load("u1")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Sender != SenderUser || got[1].Sender != SenderAI {
		t.Fatalf("expected User then AI, got %s then %s", got[0].Sender, got[1].Sender)
	}
	if got[0].Text != "I have a headache" || got[1].Text != "How long has it lasted?" {
		t.Fatalf("unexpected texts: %q, %q", got[0].Text, got[1].Text)
	}
}

func TestClearRemovesTranscript(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save("u1", []Message{NewMessage(SenderUser, "bye", time.Now())}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Clear("u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := s.Load("u1"); len(got) != 0 {
		t.Fatalf("expected empty transcript after clear, got %d messages", len(got))
	}
}

func TestLoadCorruptValueReturnsEmpty(t *testing.T) {
	s := openTestStore(t)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key("u1"), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("write corrupt value: %v", err)
	}

	if got := s.Load("u1"); len(got) != 0 {
		t.Fatalf("expected empty transcript for corrupt value, got %d", len(got))
	}
}

func TestNewMessageIDFormat(t *testing.T) {
	now := time.Now()
	u := NewMessage(SenderUser, "x", now)
	a := NewMessage(SenderAI, "y", now)

	if u.ID == a.ID {
		t.Fatal("expected distinct ids")
	}
	if u.Timestamp == "" || a.Timestamp == "" {
		t.Fatal("expected timestamps to be set")
	}
	if _, err := time.Parse(time.RFC3339, u.Timestamp); err != nil {
		t.Fatalf("timestamp not ISO-8601: %v", err)
	}
}
