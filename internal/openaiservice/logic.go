package openaiservice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"MediMate_V1.0/internal/database"
	"MediMate_V1.0/internal/transcript"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Session identifies the authenticated user for one operation. It is built
// by the HTTP layer from the verified token and passed explicitly; no
// component reads ambient login state.
type Session struct {
	UserID string
}

// Tip is a single generated piece of personalized content.
type Tip struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// TipsDocument is the per-user tips record. At most one exists per user;
// it is fresh iff its Date equals the current calendar day.
type TipsDocument struct {
	Date   string `json:"date"`
	UserID string `json:"userId"`
	Tips   []Tip  `json:"tips"`
}

// UserRecords holds the three loosely-typed source records. Any of them may
// be nil (absent), which is an expected state for new users.
type UserRecords struct {
	Profile        json.RawMessage
	Lifestyle      json.RawMessage
	MedicalHistory json.RawMessage
}

func (r UserRecords) empty() bool {
	return len(r.Profile) == 0 && len(r.Lifestyle) == 0 && len(r.MedicalHistory) == 0
}

// DocumentStore is the subset of the database layer the flow needs.
type DocumentStore interface {
	Get(ctx context.Context, collection, docID string) (json.RawMessage, error)
	Put(ctx context.Context, collection, docID string, payload any) error
}

// Completer issues one completion request.
type Completer interface {
	CreateCompletion(ctx context.Context, messages []ChatMessage, maxTokens int) (string, error)
}

// Config carries the per-flow token budgets.
type Config struct {
	TipsMaxTokens int
	ChatMaxTokens int
}

// ConfigFromEnv reads OPENAI_TIPS_MAX_TOKENS and OPENAI_CHAT_MAX_TOKENS,
// defaulting to 500 and 150.
func ConfigFromEnv() Config {
	return Config{
		TipsMaxTokens: envInt("OPENAI_TIPS_MAX_TOKENS", 500),
		ChatMaxTokens: envInt("OPENAI_CHAT_MAX_TOKENS", 150),
	}
}

func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

const tipsCacheSize = 512

// Service orchestrates the personalized-content flows.
type Service struct {
	store       DocumentStore
	ai          Completer
	transcripts *transcript.Store
	cfg         Config

	// now is injectable so the daily-cache freshness rule is testable.
	now func() time.Time

	// tipsCache is a per-process hot cache in front of the document store.
	// Entries are validated by the same date rule; the store stays
	// authoritative.
	tipsCache *lru.Cache[string, TipsDocument]
}

func NewService(store DocumentStore, ai Completer, transcripts *transcript.Store, cfg Config) *Service {
	cache, err := lru.New[string, TipsDocument](tipsCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("tips cache: %v", err))
	}
	return &Service{
		store:       store,
		ai:          ai,
		transcripts: transcripts,
		cfg:         cfg,
		now:         time.Now,
		tipsCache:   cache,
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

/* =================================================================================
								TIPS FLOW
=================================================================================*/

// GenerateHealthTips returns today's tips for the session user, generating
// and persisting them if the stored document is missing or stale. The
// daily cache is the entire caching policy: full invalidation once per
// calendar day, no partial refresh, no manual invalidation path.
func (s *Service) GenerateHealthTips(ctx context.Context, session Session) (TipsDocument, error) {
	if session.UserID == "" {
		return TipsDocument{}, ErrNoUserLoggedIn
	}
	today := s.now().Format("2006-01-02")

	if doc, ok := s.tipsCache.Get(session.UserID); ok && doc.Date == today {
		return doc, nil
	}

	raw, err := s.store.Get(ctx, database.CollectionTips, session.UserID)
	if err != nil {
		return TipsDocument{}, err
	}
	if raw != nil {
		var existing TipsDocument
		if err := json.Unmarshal(raw, &existing); err != nil {
			log.Warn().Err(err).Str("user_id", session.UserID).Msg("Stored tips document is unreadable, regenerating")
		} else if existing.Date == today {
			log.Info().Str("user_id", session.UserID).Msg("Health tips for today already exist")
			s.tipsCache.Add(session.UserID, existing)
			return existing, nil
		}
	}

	records, err := s.fetchUserRecords(ctx, session.UserID)
	if err != nil {
		return TipsDocument{}, err
	}
	if records.empty() {
		return TipsDocument{}, ErrNoProfileData
	}

	prompt := BuildTipsPrompt(records)
	log.Info().Str("user_id", session.UserID).Msg("Requesting health tips from completions API")
	text, err := s.ai.CreateCompletion(ctx, []ChatMessage{{Role: "user", Content: prompt}}, s.cfg.TipsMaxTokens)
	if err != nil {
		return TipsDocument{}, err
	}

	tips, err := materializeTips(text)
	if err != nil {
		return TipsDocument{}, err
	}

	doc := TipsDocument{
		Date:   today,
		UserID: session.UserID,
		Tips:   tips,
	}
	if err := s.store.Put(ctx, database.CollectionTips, session.UserID, doc); err != nil {
		return TipsDocument{}, err
	}
	s.tipsCache.Add(session.UserID, doc)

	log.Info().Str("user_id", session.UserID).Int("tips", len(tips)).Msg("Health tips generated and saved")
	return doc, nil
}

// materializeTips parses the raw completion text into validated tips.
// Defaults are applied field by field: title falls back to "Tip {n}",
// content to "", category to "general". Synthetic ids are positional and
// collide across same-day regenerations.
func materializeTips(text string) ([]Tip, error) {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	items, ok := parsed.([]any)
	if !ok {
		return nil, ErrUnexpectedShape
	}

	tips := make([]Tip, 0, len(items))
	for i, item := range items {
		tip := Tip{
			ID:       fmt.Sprintf("tip-%d", i+1),
			Title:    fmt.Sprintf("Tip %d", i+1),
			Content:  "",
			Category: "general",
		}
		if obj, ok := item.(map[string]any); ok {
			if v, ok := obj["title"].(string); ok && v != "" {
				tip.Title = v
			}
			if v, ok := obj["content"].(string); ok {
				tip.Content = v
			}
			if v, ok := obj["category"].(string); ok && v != "" {
				tip.Category = v
			}
		}
		tips = append(tips, tip)
	}
	return tips, nil
}

/* =================================================================================
								CHAT FLOW
=================================================================================*/

// SendChatMessage appends the user's message to the transcript, asks the
// model for a reply with the full conversation as context, appends the
// reply and returns both messages. If the completion fails the user
// message stays persisted and the error is surfaced.
func (s *Service) SendChatMessage(ctx context.Context, session Session, text string) (transcript.Message, transcript.Message, error) {
	var none transcript.Message

	if session.UserID == "" {
		return none, none, ErrNoUserLoggedIn
	}
	if strings.TrimSpace(text) == "" {
		return none, none, ErrEmptyMessage
	}

	userMsg := transcript.NewMessage(transcript.SenderUser, text, s.now())
	if err := s.transcripts.Append(session.UserID, userMsg); err != nil {
		return none, none, err
	}

	records, err := s.fetchUserRecords(ctx, session.UserID)
	if err != nil {
		return userMsg, none, err
	}
	if records.empty() {
		return userMsg, none, ErrNoProfileData
	}

	history := s.transcripts.Load(session.UserID)
	messages := BuildChatMessages(records, history)

	log.Info().Str("user_id", session.UserID).Int("history", len(history)).Msg("Requesting chat reply from completions API")
	reply, err := s.ai.CreateCompletion(ctx, messages, s.cfg.ChatMaxTokens)
	if err != nil {
		return userMsg, none, err
	}

	aiMsg := transcript.NewMessage(transcript.SenderAI, reply, s.now())
	if err := s.transcripts.Append(session.UserID, aiMsg); err != nil {
		return userMsg, none, err
	}

	return userMsg, aiMsg, nil
}

/* =================================================================================
							PROFILE DATA ACCESSOR
=================================================================================*/

// fetchUserRecords reads the three source records in parallel. The reads
// are jointly awaited and fail fast: any transport error fails the flow,
// while per-record absence is a valid result.
func (s *Service) fetchUserRecords(ctx context.Context, userID string) (UserRecords, error) {
	var records UserRecords

	g, grpCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := s.store.Get(grpCtx, database.CollectionUsers, userID)
		if err != nil {
			return err
		}
		records.Profile = raw
		return nil
	})

	g.Go(func() error {
		raw, err := s.store.Get(grpCtx, database.CollectionLifestyle, userID)
		if err != nil {
			return err
		}
		records.Lifestyle = raw
		return nil
	})

	g.Go(func() error {
		raw, err := s.store.Get(grpCtx, database.CollectionMedicalHistory, userID)
		if err != nil {
			return err
		}
		records.MedicalHistory = raw
		return nil
	})

	if err := g.Wait(); err != nil {
		return UserRecords{}, err
	}
	return records, nil
}

// FetchUserRecords exposes the parallel accessor for the combined
// user-data endpoint.
func (s *Service) FetchUserRecords(ctx context.Context, session Session) (UserRecords, error) {
	if session.UserID == "" {
		return UserRecords{}, ErrNoUserLoggedIn
	}
	return s.fetchUserRecords(ctx, session.UserID)
}
