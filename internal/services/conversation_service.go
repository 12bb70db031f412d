// Package services – ConversationService
//
// This file implements ConversationService, the application-level component
// that owns the lifecycle of conversations and message turns. It validates
// inputs, enforces monthly quotas, locates or creates the active conversation
// for a session, runs the processing pipeline, and persists the user/bot
// message pair together with refreshed conversation analytics.
//
// Concurrency: turns are serialized per (chatbot, session) pair with an
// in-memory keyed lock, so two simultaneous messages from the same widget
// cannot create duplicate conversations or interleave their message pairs.
// Different sessions proceed in parallel.
//
// Optional enhancement: it also auto-generates a conversation title from the
// first user message when the conversation still has an empty title.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include chatbot/session identifiers and pagination parameters where
// applicable.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/engine"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
	"github.com/chatforge/go-chatbot-backend/internal/webhook"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Notifier is the webhook delivery contract used by the service. The
// production implementation is *webhook.Dispatcher.
type Notifier interface {
	Enqueue(url string, ev webhook.Event)
}

// IncomingMessage is one inbound turn from the widget. Either Text or
// ButtonID must be set; ButtonID carries the clicked quick-reply value.
type IncomingMessage struct {
	Text     string
	ButtonID string
	Visitor  domain.VisitorInfo
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Conversation *domain.Conversation
	UserMessage  *domain.Message
	BotMessage   *domain.Message
	// Created reports whether this turn started a new conversation.
	Created bool
}

// sessionLock guards one (chatbot, session) pair and remembers when it was
// last used so idle entries can be evicted.
type sessionLock struct {
	mu       sync.Mutex
	lastSeen time.Time
}

// ConversationService coordinates conversation persistence and response
// generation through the processing pipeline.
type ConversationService struct {
	DB       *gorm.DB
	Pipeline *engine.Pipeline
	Webhooks Notifier

	// MaxMessageRunes caps inbound message length; <= 0 disables the check.
	MaxMessageRunes int

	// DefaultMonthlyLimit applies to owners without an explicit plan limit
	// for the period. 0 means unlimited.
	DefaultMonthlyLimit int64

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int

	mu       sync.Mutex
	locks    map[string]*sessionLock
	cleanupN uint64
}

// NewConversationService constructs a ConversationService with sane defaults.
func NewConversationService(db *gorm.DB, p *engine.Pipeline, wh Notifier) *ConversationService {
	return &ConversationService{
		DB:              db,
		Pipeline:        p,
		Webhooks:        wh,
		MaxMessageRunes: 4000,
		TitleLocale:     language.Und,
		TitleMaxLen:     60,
		locks:           make(map[string]*sessionLock),
	}
}

// lockSession returns the keyed lock for the pair, creating it if absent.
// Idle locks are evicted opportunistically after ~5000 lookups.
//
// IMPORTANT: Run GC *before* touching the requested entry so an "old" lock
// can be evicted even when it's the one being fetched.
func (s *ConversationService) lockSession(chatbotID, sessionID string) *sessionLock {
	key := chatbotID + "|" + sessionID
	now := time.Now()

	s.mu.Lock()
	s.cleanupN++
	if s.cleanupN >= 5000 {
		for k, l := range s.locks {
			if now.Sub(l.lastSeen) >= 30*time.Minute && l.mu.TryLock() {
				l.mu.Unlock()
				delete(s.locks, k)
			}
		}
		s.cleanupN = 0
	}

	l, ok := s.locks[key]
	if !ok {
		l = &sessionLock{}
		s.locks[key] = l
	}
	l.lastSeen = now
	s.mu.Unlock()
	return l
}

// ProcessMessage handles one inbound turn end to end: validate, check quota,
// locate or create the active conversation, append the user message, run the
// pipeline, append the bot message, refresh analytics/lead/title, and bump
// the aggregate counters.
//
// Turns for the same (chatbotID, sessionID) pair are serialized; the caller
// gets the finished pair or an error, never a half-written turn.
func (s *ConversationService) ProcessMessage(ctx context.Context, chatbotID, sessionID string, in IncomingMessage) (*TurnResult, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ProcessMessage",
		trace.WithAttributes(
			attribute.String("chatbot.id", chatbotID),
			attribute.String("session.id", sessionID),
		),
	)
	defer span.End()

	// Normalize & validate the turn.
	text := strings.TrimSpace(in.Text)
	if text == "" && in.ButtonID == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	// Load the chatbot with flows and knowledge base.
	bot, err := repo.GetChatbotWithConfig(ctx, s.DB, chatbotID)
	if err != nil {
		return nil, ErrChatbotNotFound
	}
	if !bot.IsActive {
		return nil, ErrChatbotInactive
	}

	// Quota check happens before any mutation.
	period := repo.Period(time.Now())
	usage, err := repo.GetOwnerUsage(ctx, s.DB, bot.OwnerID, period)
	if err != nil {
		return nil, err
	}
	limit := usage.MonthlyLimit
	if limit == 0 {
		limit = s.DefaultMonthlyLimit
	}
	if limit > 0 && usage.Used >= limit {
		return nil, ErrQuotaExceeded
	}

	// Serialize the turn against other turns of the same session.
	l := s.lockSession(chatbotID, sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	out := &TurnResult{}
	conv, err := repo.FindActiveConversation(ctx, s.DB, chatbotID, sessionID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		conv, err = repo.CreateConversation(ctx, s.DB, chatbotID, sessionID, in.Visitor)
		if err != nil {
			return nil, err
		}
		out.Created = true
	}

	// Append the user turn. A bare button click is logged as its id so the
	// transcript stays complete.
	userContent := text
	if userContent == "" {
		userContent = in.ButtonID
	}
	userMsg, err := repo.CreateMessage(ctx, s.DB, conv.ID, domain.MessageUser, userContent, domain.MessageMetadata{})
	if err != nil {
		return nil, err
	}

	// Generate the response.
	res := s.Pipeline.Process(ctx, bot, conv, text, in.ButtonID)

	conf := res.Confidence
	botMsg, err := repo.CreateMessage(ctx, s.DB, conv.ID, domain.MessageBot, res.Content, domain.MessageMetadata{
		Confidence:       &conf,
		FlowID:           res.FlowID,
		NodeID:           res.NodeID,
		AIGenerated:      res.AIGenerated,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
		Buttons:          res.Buttons,
		DelayMs:          res.DelayMs,
	})
	if err != nil {
		return nil, err
	}

	// Lead capture: overlay new fields onto whatever is already known.
	leadCaptured := false
	if res.Lead != nil {
		if conv.Lead == nil {
			conv.Lead = &domain.Lead{}
		}
		leadCaptured = conv.Lead.Merge(res.Lead)
	}

	// Refresh conversation state.
	conv.Messages = append(conv.Messages, *userMsg, *botMsg)
	conv.Analytics = deriveAnalytics(conv.Messages)
	conv.LastActivityAt = time.Now().UTC()
	if conv.Title == "" {
		if gen := s.generateTitle(userContent); gen != "" {
			conv.Title = s.clipTitle(gen)
		}
	}
	if err := repo.SaveConversation(ctx, s.DB, conv); err != nil {
		return nil, err
	}

	// Aggregate counters and quota consumption.
	convDelta := int64(0)
	if out.Created {
		convDelta = 1
	}
	leadDelta := int64(0)
	if leadCaptured {
		leadDelta = 1
	}
	if err := repo.IncrementChatbotCounters(ctx, s.DB, bot.ID, convDelta, 2, leadDelta); err != nil {
		return nil, err
	}
	if err := repo.IncrementUsage(ctx, s.DB, bot.OwnerID, period, 1); err != nil {
		return nil, err
	}

	s.notify(bot, conv, webhook.EventMessageProcessed, map[string]any{
		"user_message": userMsg.Content,
		"bot_message":  botMsg.Content,
		"confidence":   res.Confidence,
	})
	if leadCaptured {
		s.notify(bot, conv, webhook.EventLeadCaptured, conv.Lead)
	}

	span.SetAttributes(
		attribute.Bool("conversation.created", out.Created),
		attribute.Bool("lead.captured", leadCaptured),
	)

	out.Conversation = conv
	out.UserMessage = userMsg
	out.BotMessage = botMsg
	return out, nil
}

// EndConversation marks the session's active conversation as ended and emits
// the corresponding webhook event.
func (s *ConversationService) EndConversation(ctx context.Context, chatbotID, sessionID string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "EndConversation",
		trace.WithAttributes(
			attribute.String("chatbot.id", chatbotID),
			attribute.String("session.id", sessionID),
		),
	)
	defer span.End()

	bot, err := repo.GetChatbot(ctx, s.DB, chatbotID)
	if err != nil {
		return nil, ErrChatbotNotFound
	}

	l := s.lockSession(chatbotID, sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	conv, err := repo.EndConversation(ctx, s.DB, chatbotID, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	s.notify(bot, conv, webhook.EventConversationEnded, map[string]any{
		"duration_ms":   conv.DurationMs,
		"message_count": conv.Analytics.MessageCount,
	})
	return conv, nil
}

// ListPage returns paginated conversations for a chatbot, most recently
// active first. It applies defaults for invalid page/pageSize and returns the
// total count.
func (s *ConversationService) ListPage(ctx context.Context, chatbotID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chatbot.id", chatbotID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetChatbot(ctx, s.DB, chatbotID); err != nil {
		return nil, 0, ErrChatbotNotFound
	}

	total, err := repo.CountConversations(ctx, s.DB, chatbotID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := repo.ListConversationsPage(ctx, s.DB, chatbotID, offset, pageSize)
	return items, total, err
}

// Get returns one conversation with its transcript, scoped to the chatbot.
func (s *ConversationService) Get(ctx context.Context, chatbotID, conversationID string) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, conversationID, chatbotID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) notify(bot *domain.Chatbot, conv *domain.Conversation, typ string, data any) {
	if s.Webhooks == nil || bot.WebhookURL == "" {
		return
	}
	s.Webhooks.Enqueue(bot.WebhookURL, webhook.Event{
		Type:           typ,
		ChatbotID:      bot.ID,
		ConversationID: conv.ID,
		SessionID:      conv.SessionID,
		Timestamp:      time.Now().UTC(),
		Data:           data,
	})
}

// deriveAnalytics recomputes the per-conversation counters from the message
// log. Stored values are a read convenience; the log is authoritative.
func deriveAnalytics(msgs []domain.Message) domain.ConversationAnalytics {
	a := domain.ConversationAnalytics{MessageCount: len(msgs)}
	var botTotalMs, botTimed int64
	for i := range msgs {
		switch msgs[i].Type {
		case domain.MessageUser:
			a.UserMessageCount++
		case domain.MessageBot:
			a.BotMessageCount++
			if ms := msgs[i].Metadata.ProcessingTimeMs; ms > 0 {
				botTotalMs += ms
				botTimed++
			}
		}
	}
	if botTimed > 0 {
		a.AvgResponseTimeMs = float64(botTotalMs) / float64(botTimed)
	}
	return a
}

// generateTitle derives a concise title from the first user message.
func (s *ConversationService) generateTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(text), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.titleLocaleOrDefault())
	out := make([]string, 0, 8)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a generated title to the configured maximum rune length.
func (s *ConversationService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

// titleLocaleOrDefault returns the configured locale for casing or English if unset.
func (s *ConversationService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// --- Title generation helpers ---

// Extract Unicode letters with optional trailing numbers (e.g., "q3").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}
