/*
Package transcript persists each user's chat history in a local Badger
key-value store. The transcript is stored as a single JSON array per user
and always replaced wholesale; there is no append-only log and no
cross-device conflict handling.
*/
package transcript

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog/log"
)

// Message senders. The wire values match what the mobile client renders.
const (
	SenderUser = "User"
	SenderAI   = "AI"
)

// Message is a single chat entry. Ordering is insertion order and the
// stored sequence is the whole conversation, unbounded.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"` // ISO-8601
}

// NewMessage builds a message with the client's id scheme: unix millis plus
// a short random suffix. Not globally unique, which is acceptable for a
// single conversation stream.
func NewMessage(sender, text string, now time.Time) Message {
	suffix := randomSuffix()
	id := fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
	if sender == SenderAI {
		id = fmt.Sprintf("%d_AI_%s", now.UnixMilli(), suffix)
	}
	return Message{
		ID:        id,
		Sender:    sender,
		Text:      text,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

func randomSuffix() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a time-derived suffix; uniqueness here is best effort.
		return fmt.Sprintf("%x", time.Now().UnixNano()&0xfffff)
	}
	return hex.EncodeToString(b)
}

// Store is the on-node transcript cache.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(userID string) []byte {
	return []byte("chat_" + userID)
}

// Load returns the stored transcript for the user. A missing key or an
// unparseable value yields an empty transcript; storage errors of that kind
// are logged and swallowed so a corrupt cache never blocks the chat screen.
func (s *Store) Load(userID string) []Message {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(userID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []Message{}
	}
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load transcript, returning empty")
		return []Message{}
	}

	var messages []Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Stored transcript is not valid JSON, returning empty")
		return []Message{}
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages
}

// Save serializes the full message list and overwrites the stored value.
func (s *Store) Save(userID string, messages []Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(userID), data)
	})
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// Append adds messages to the stored transcript inside a single update
// transaction, so a crash can never persist a half-written sequence.
func (s *Store) Append(userID string, messages ...Message) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var current []Message
		item, err := txn.Get(key(userID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First message for this user.
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &current); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Discarding unparseable transcript on append")
				current = nil
			}
		}

		data, err := json.Marshal(append(current, messages...))
		if err != nil {
			return err
		}
		return txn.Set(key(userID), data)
	})
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// Clear removes the stored transcript for the user.
func (s *Store) Clear(userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(userID))
	})
	if err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	return nil
}
