package repo

import (
	"context"
	"testing"
	"time"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

func TestPeriod_FormatsCalendarMonth(t *testing.T) {
	ts := time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)
	if got := Period(ts); got != "2026-08" {
		t.Fatalf("Period = %q", got)
	}
}

func TestGetOwnerUsage_MissingRowIsZero(t *testing.T) {
	db := newRepoDB(t, &domain.OwnerUsage{})
	u, err := GetOwnerUsage(context.Background(), db, "o1", "2026-08")
	if err != nil {
		t.Fatalf("GetOwnerUsage: %v", err)
	}
	if u.OwnerID != "o1" || u.Period != "2026-08" || u.Used != 0 || u.MonthlyLimit != 0 {
		t.Fatalf("expected zero row, got %+v", u)
	}
}

func TestIncrementUsage_UpsertAccumulates(t *testing.T) {
	db := newRepoDB(t, &domain.OwnerUsage{})
	ctx := context.Background()

	if err := IncrementUsage(ctx, db, "o1", "2026-08", 1); err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if err := IncrementUsage(ctx, db, "o1", "2026-08", 3); err != nil {
		t.Fatalf("second increment: %v", err)
	}

	u, err := GetOwnerUsage(ctx, db, "o1", "2026-08")
	if err != nil {
		t.Fatalf("GetOwnerUsage: %v", err)
	}
	if u.Used != 4 {
		t.Fatalf("Used = %d, want 4", u.Used)
	}
}

func TestIncrementUsage_PeriodsAreIndependent(t *testing.T) {
	db := newRepoDB(t, &domain.OwnerUsage{})
	ctx := context.Background()

	if err := IncrementUsage(ctx, db, "o1", "2026-07", 5); err != nil {
		t.Fatalf("july: %v", err)
	}
	if err := IncrementUsage(ctx, db, "o1", "2026-08", 1); err != nil {
		t.Fatalf("august: %v", err)
	}

	aug, err := GetOwnerUsage(ctx, db, "o1", "2026-08")
	if err != nil || aug.Used != 1 {
		t.Fatalf("august usage = %+v, %v", aug, err)
	}
}

func TestSetMonthlyLimit_PreservesUsage(t *testing.T) {
	db := newRepoDB(t, &domain.OwnerUsage{})
	ctx := context.Background()

	if err := IncrementUsage(ctx, db, "o1", "2026-08", 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := SetMonthlyLimit(ctx, db, "o1", "2026-08", 1000); err != nil {
		t.Fatalf("SetMonthlyLimit: %v", err)
	}

	u, err := GetOwnerUsage(ctx, db, "o1", "2026-08")
	if err != nil {
		t.Fatalf("GetOwnerUsage: %v", err)
	}
	if u.MonthlyLimit != 1000 || u.Used != 2 {
		t.Fatalf("limit update clobbered usage: %+v", u)
	}
}
