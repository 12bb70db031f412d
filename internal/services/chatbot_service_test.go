package services

import (
	"context"
	"errors"
	"testing"
)

func TestChatbotService_GetAndList(t *testing.T) {
	db := newServiceDB(t)
	seedBot(t, db)
	svc := NewChatbotService(db)
	ctx := context.Background()

	bot, err := svc.Get(ctx, "b1")
	if err != nil || bot.Name != "Support" {
		t.Fatalf("Get: %+v, %v", bot, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrChatbotNotFound) {
		t.Fatalf("missing bot: %v", err)
	}

	bots, err := svc.List(ctx, "o1")
	if err != nil || len(bots) != 1 {
		t.Fatalf("List: %d, %v", len(bots), err)
	}
}

func TestChatbotService_Analytics(t *testing.T) {
	db := newServiceDB(t)
	seedBot(t, db)
	convSvc := newService(db, nil)
	ctx := context.Background()

	if _, err := convSvc.ProcessMessage(ctx, "b1", "s1", IncomingMessage{Text: "hello"}); err != nil {
		t.Fatalf("turn: %v", err)
	}

	a, err := NewChatbotService(db).Analytics(ctx, "b1")
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a.TotalConversations != 1 || a.TotalMessages != 2 || a.ActiveConversations != 1 {
		t.Fatalf("rollup: %+v", a)
	}

	if _, err := NewChatbotService(db).Analytics(ctx, "missing"); !errors.Is(err, ErrChatbotNotFound) {
		t.Fatalf("missing bot: %v", err)
	}
}
