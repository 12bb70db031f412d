package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

func convSchema() []any {
	return []any{&domain.Chatbot{}, &domain.Conversation{}, &domain.Message{}}
}

func TestCreateAndFindActiveConversation(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	conv, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{Name: "Ada"})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID == "" || conv.Status != domain.ConversationActive {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	got, err := FindActiveConversation(ctx, db, "b1", "sess-1")
	if err != nil {
		t.Fatalf("FindActiveConversation: %v", err)
	}
	if got.ID != conv.ID || got.Visitor.Name != "Ada" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestFindActiveConversation_NotFound(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	_, err := FindActiveConversation(context.Background(), db, "b1", "no-such-session")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindActiveConversation_SkipsEnded(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	if _, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := EndConversation(ctx, db, "b1", "sess-1"); err != nil {
		t.Fatalf("end: %v", err)
	}

	if _, err := FindActiveConversation(ctx, db, "b1", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ended conversation must not be found as active, got %v", err)
	}
}

func TestFindActiveConversation_PreloadsMessagesInOrder(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	conv, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Seed with known CreatedAt so order is deterministic.
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{ID: "m2", ConversationID: conv.ID, Type: domain.MessageBot, Content: "second", CreatedAt: t0.Add(time.Minute)},
		{ID: "m1", ConversationID: conv.ID, Type: domain.MessageUser, Content: "first", CreatedAt: t0},
	}
	for i := range msgs {
		if err := db.Create(&msgs[i]).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	got, err := FindActiveConversation(ctx, db, "b1", "sess-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].ID != "m1" || got.Messages[1].ID != "m2" {
		t.Fatalf("messages not in arrival order: %+v", got.Messages)
	}
}

func TestSaveConversation_PersistsMutableColumns(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	conv, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conv.Title = "Pricing question"
	conv.Lead = &domain.Lead{Email: "ada@example.com"}
	conv.Analytics = domain.ConversationAnalytics{MessageCount: 2, UserMessageCount: 1, BotMessageCount: 1}
	conv.LastActivityAt = time.Now().UTC()
	if err := SaveConversation(ctx, db, conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := FindActiveConversation(ctx, db, "b1", "sess-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Title != "Pricing question" {
		t.Errorf("title not saved: %q", got.Title)
	}
	if got.Lead == nil || got.Lead.Email != "ada@example.com" {
		t.Errorf("lead not saved: %+v", got.Lead)
	}
	if got.Analytics.MessageCount != 2 || got.Analytics.BotMessageCount != 1 {
		t.Errorf("analytics not saved: %+v", got.Analytics)
	}
}

func TestEndConversation_StampsDuration(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	conv, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Backdate the start so the duration is measurably positive.
	conv.StartedAt = time.Now().UTC().Add(-2 * time.Second)
	if err := SaveConversation(ctx, db, conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	ended, err := EndConversation(ctx, db, "b1", "sess-1")
	if err != nil {
		t.Fatalf("EndConversation: %v", err)
	}
	if ended.Status != domain.ConversationEnded || ended.EndedAt == nil {
		t.Fatalf("not ended: %+v", ended)
	}
	if ended.DurationMs < 1000 {
		t.Errorf("duration suspiciously small: %d", ended.DurationMs)
	}

	// Ending again fails: nothing active remains.
	if _, err := EndConversation(ctx, db, "b1", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double end, got %v", err)
	}
}

func TestListConversationsPage_And_Count(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		conv := &domain.Conversation{
			ID: string(rune('a'+i)) + "-conv", ChatbotID: "b1", SessionID: string(rune('a' + i)),
			Status: domain.ConversationActive, StartedAt: base,
			LastActivityAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(conv).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	total, err := CountConversations(ctx, db, "b1")
	if err != nil || total != 5 {
		t.Fatalf("CountConversations = %d, %v", total, err)
	}

	page, err := ListConversationsPage(ctx, db, "b1", 0, 2)
	if err != nil {
		t.Fatalf("ListConversationsPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	// Most recent activity first.
	if !page[0].LastActivityAt.After(page[1].LastActivityAt) {
		t.Fatalf("page not sorted by last activity: %v then %v", page[0].LastActivityAt, page[1].LastActivityAt)
	}
}

func TestGetConversation_ScopedToChatbot(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	conv, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := GetConversation(ctx, db, conv.ID, "b1"); err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if _, err := GetConversation(ctx, db, conv.ID, "other-bot"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-chatbot read must fail, got %v", err)
	}
}

func TestCreateMessage_And_List(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	ctx := context.Background()

	conv, err := CreateConversation(ctx, db, "b1", "sess-1", domain.VisitorInfo{})
	if err != nil {
		t.Fatalf("create conv: %v", err)
	}

	conf := 0.9
	m, err := CreateMessage(ctx, db, conv.ID, domain.MessageBot, "Hello!", domain.MessageMetadata{
		Confidence: &conf, FlowID: "f1", NodeID: "n1",
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.Type != domain.MessageBot {
		t.Fatalf("unexpected message: %+v", m)
	}

	out, err := ListMessages(ctx, db, conv.ID, 0)
	if err != nil || len(out) != 1 {
		t.Fatalf("ListMessages: %v, %d rows", err, len(out))
	}
	if out[0].Metadata.Confidence == nil || *out[0].Metadata.Confidence != 0.9 {
		t.Fatalf("metadata did not round-trip: %+v", out[0].Metadata)
	}

	total, err := CountMessages(ctx, db, conv.ID)
	if err != nil || total != 1 {
		t.Fatalf("CountMessages = %d, %v", total, err)
	}
}

func TestCreateMessage_RequiresConversationID(t *testing.T) {
	db := newRepoDB(t, convSchema()...)
	if _, err := CreateMessage(context.Background(), db, "", domain.MessageUser, "hi", domain.MessageMetadata{}); err == nil {
		t.Fatal("expected error for empty conversation id")
	}
}

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, err := CountMessages(context.Background(), db, "c1"); err == nil {
		t.Fatal("expected error counting without table")
	}
}
