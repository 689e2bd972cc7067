package openaiservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"MediMate_V1.0/internal/database"
	"MediMate_V1.0/internal/transcript"
)

// fakeStore is an in-memory DocumentStore.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
	gets int
	errs map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs: make(map[string]json.RawMessage),
		errs: make(map[string]error),
	}
}

func docKey(collection, docID string) string {
	return collection + "/" + docID
}

func (f *fakeStore) Get(_ context.Context, collection, docID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := f.errs[docKey(collection, docID)]; err != nil {
		return nil, err
	}
	return f.docs[docKey(collection, docID)], nil
}

func (f *fakeStore) Put(_ context.Context, collection, docID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[docKey(collection, docID)] = data
	return nil
}

func (f *fakeStore) seed(t *testing.T, collection, docID string, payload any) {
	t.Helper()
	if err := f.Put(context.Background(), collection, docID, payload); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, docID, err)
	}
}

// fakeCompleter returns a canned response and records what it was asked.
type fakeCompleter struct {
	response  string
	err       error
	calls     int
	messages  []ChatMessage
	maxTokens int
}

func (f *fakeCompleter) CreateCompletion(_ context.Context, messages []ChatMessage, maxTokens int) (string, error) {
	f.calls++
	f.messages = messages
	f.maxTokens = maxTokens
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestService(t *testing.T, store *fakeStore, ai *fakeCompleter, day string) *Service {
	t.Helper()
	ts, err := transcript.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = ts.Close() })

	when, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	cfg := Config{TipsMaxTokens: 500, ChatMaxTokens: 150}
	return NewService(store, ai, ts, cfg).WithClock(func() time.Time { return when })
}

func seedProfile(t *testing.T, store *fakeStore, userID string) {
	t.Helper()
	store.seed(t, database.CollectionUsers, userID, map[string]any{"name": "Ada", "age": 36})
	store.seed(t, database.CollectionLifestyle, userID, map[string]any{"sleepHours": 7})
	store.seed(t, database.CollectionMedicalHistory, userID, map[string]any{"allergies": "pollen"})
}

func TestGenerateHealthTipsReturnsFreshCachedDocument(t *testing.T) {
	store := newFakeStore()
	ai := &fakeCompleter{}
	cached := TipsDocument{
		Date:   "2024-01-02",
		UserID: "u1",
		Tips:   []Tip{{ID: "tip-1", Title: "Drink water", Content: "8 glasses", Category: "nutrition"}},
	}
	store.seed(t, database.CollectionTips, "u1", cached)

	svc := newTestService(t, store, ai, "2024-01-02")
	got, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if ai.calls != 0 {
		t.Fatalf("expected no completion calls for a fresh document, got %d", ai.calls)
	}
	if got.Date != cached.Date || len(got.Tips) != 1 || got.Tips[0] != cached.Tips[0] {
		t.Fatalf("cached document was not returned unchanged: %+v", got)
	}
}

func TestGenerateHealthTipsRegeneratesStaleDocument(t *testing.T) {
	store := newFakeStore()
	store.seed(t, database.CollectionTips, "u1", TipsDocument{
		Date: "2024-01-01", UserID: "u1",
		Tips: []Tip{{ID: "tip-1", Title: "Old", Category: "general"}},
	})
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{response: `[{"title":"Walk more","content":"Take a daily walk","category":"exercise"}]`}
	svc := newTestService(t, store, ai, "2024-01-02")

	got, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("expected exactly one completion call, got %d", ai.calls)
	}
	if got.Date != "2024-01-02" {
		t.Fatalf("expected regenerated date 2024-01-02, got %s", got.Date)
	}

	// The stale document must be overwritten in the store.
	raw, _ := store.Get(context.Background(), database.CollectionTips, "u1")
	var stored TipsDocument
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal stored tips: %v", err)
	}
	if stored.Date != "2024-01-02" || stored.Tips[0].Title != "Walk more" {
		t.Fatalf("stored document not overwritten: %+v", stored)
	}
}

func TestGenerateHealthTipsAppliesDefaultsPerField(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{response: `[{"content":"x"},{"title":"Sleep well"},{"title":"Eat greens","content":"Daily","category":"nutrition"}]`}
	svc := newTestService(t, store, ai, "2024-01-02")

	got, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := []Tip{
		{ID: "tip-1", Title: "Tip 1", Content: "x", Category: "general"},
		{ID: "tip-2", Title: "Sleep well", Content: "", Category: "general"},
		{ID: "tip-3", Title: "Eat greens", Content: "Daily", Category: "nutrition"},
	}
	if len(got.Tips) != len(want) {
		t.Fatalf("expected %d tips, got %d", len(want), len(got.Tips))
	}
	for i := range want {
		if got.Tips[i] != want[i] {
			t.Errorf("tip %d: got %+v want %+v", i, got.Tips[i], want[i])
		}
	}
	if ai.maxTokens != 500 {
		t.Errorf("expected tips token budget 500, got %d", ai.maxTokens)
	}
}

func TestGenerateHealthTipsMalformedResponse(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{response: "Sure! Here are some tips for you."}
	svc := newTestService(t, store, ai, "2024-01-02")

	_, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}

	if raw, _ := store.Get(context.Background(), database.CollectionTips, "u1"); raw != nil {
		t.Fatal("no tips document may be written on a malformed response")
	}
}

func TestGenerateHealthTipsUnexpectedShape(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{response: `{"tips":[{"title":"t"}]}`}
	svc := newTestService(t, store, ai, "2024-01-02")

	_, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Fatalf("expected ErrUnexpectedShape, got %v", err)
	}
	if raw, _ := store.Get(context.Background(), database.CollectionTips, "u1"); raw != nil {
		t.Fatal("no tips document may be written on an unexpected shape")
	}
}

func TestGenerateHealthTipsNoProfileData(t *testing.T) {
	store := newFakeStore()
	ai := &fakeCompleter{response: `[]`}
	svc := newTestService(t, store, ai, "2024-01-02")

	_, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if !errors.Is(err, ErrNoProfileData) {
		t.Fatalf("expected ErrNoProfileData, got %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("expected no completion calls without profile data, got %d", ai.calls)
	}
}

func TestGenerateHealthTipsRequiresSession(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeCompleter{}, "2024-01-02")
	_, err := svc.GenerateHealthTips(context.Background(), Session{})
	if !errors.Is(err, ErrNoUserLoggedIn) {
		t.Fatalf("expected ErrNoUserLoggedIn, got %v", err)
	}
}

func TestGenerateHealthTipsTransportErrorPropagates(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")
	store.errs[docKey(database.CollectionLifestyle, "u1")] = fmt.Errorf("connection refused")

	ai := &fakeCompleter{response: `[]`}
	svc := newTestService(t, store, ai, "2024-01-02")

	_, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected the record-read error to propagate, got %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("expected no completion calls after a failed read, got %d", ai.calls)
	}
}

func TestGenerateHealthTipsHotCacheAvoidsStoreRead(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{response: `[{"title":"t","content":"c"}]`}
	svc := newTestService(t, store, ai, "2024-01-02")

	if _, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"}); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	before := store.gets

	if _, err := svc.GenerateHealthTips(context.Background(), Session{UserID: "u1"}); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if store.gets != before {
		t.Fatalf("expected the second call to be served from the hot cache, saw %d extra reads", store.gets-before)
	}
	if ai.calls != 1 {
		t.Fatalf("expected a single completion call across both invocations, got %d", ai.calls)
	}
}

func TestSendChatMessageAppendsUserThenAI(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{response: "Drink fluids and rest."}
	svc := newTestService(t, store, ai, "2024-01-02")

	userMsg, aiMsg, err := svc.SendChatMessage(context.Background(), Session{UserID: "u1"}, "I have a sore throat")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if userMsg.Sender != transcript.SenderUser || aiMsg.Sender != transcript.SenderAI {
		t.Fatalf("unexpected senders: %s, %s", userMsg.Sender, aiMsg.Sender)
	}
	if aiMsg.Text != "Drink fluids and rest." {
		t.Fatalf("unexpected reply text: %q", aiMsg.Text)
	}

	persisted := svc.transcripts.Load("u1")
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(persisted))
	}
	if persisted[0].Sender != transcript.SenderUser || persisted[1].Sender != transcript.SenderAI {
		t.Fatalf("persisted order wrong: %s then %s", persisted[0].Sender, persisted[1].Sender)
	}

	// The completion request must carry the system context plus the
	// role-tagged transcript.
	if len(ai.messages) < 2 || ai.messages[0].Role != "system" {
		t.Fatalf("expected a leading system message, got %+v", ai.messages)
	}
	last := ai.messages[len(ai.messages)-1]
	if last.Role != "user" || last.Content != "I have a sore throat" {
		t.Fatalf("expected trailing user message, got %+v", last)
	}
	if ai.maxTokens != 150 {
		t.Errorf("expected chat token budget 150, got %d", ai.maxTokens)
	}
}

func TestSendChatMessageRejectsEmptyText(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeCompleter{}, "2024-01-02")
	_, _, err := svc.SendChatMessage(context.Background(), Session{UserID: "u1"}, "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSendChatMessageKeepsUserMessageOnFailure(t *testing.T) {
	store := newFakeStore()
	seedProfile(t, store, "u1")

	ai := &fakeCompleter{err: &TransportError{Status: "503 Service Unavailable"}}
	svc := newTestService(t, store, ai, "2024-01-02")

	_, _, err := svc.SendChatMessage(context.Background(), Session{UserID: "u1"}, "hello?")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	persisted := svc.transcripts.Load("u1")
	if len(persisted) != 1 || persisted[0].Sender != transcript.SenderUser {
		t.Fatalf("expected only the user message to be persisted, got %+v", persisted)
	}
}
