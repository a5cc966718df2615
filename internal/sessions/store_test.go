package sessions

import (
	"testing"
	"time"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func TestAcquireCreatesOncePerPair(t *testing.T) {
	s := NewStore()
	a := s.Acquire(models.ChannelConsole, "alice", "main")
	b := s.Acquire(models.ChannelConsole, "alice", "main")
	if a.ID != b.ID {
		t.Errorf("same pair produced two sessions: %s vs %s", a.ID, b.ID)
	}
	c := s.Acquire(models.ChannelTelegram, "alice", "main")
	if c.ID == a.ID {
		t.Error("different channels share a session")
	}
	if s.Active() != 2 {
		t.Errorf("Active = %d, want 2", s.Active())
	}
}

func TestAcquireArchivesIdleSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := NewStore(WithIdleThreshold(time.Hour), WithNow(func() time.Time { return clock }))

	first := s.Acquire(models.ChannelConsole, "alice", "main")
	first.Append(models.Message{Role: models.RoleUser, Content: "hi", CreatedAt: now})

	clock = now.Add(2 * time.Hour)
	second := s.Acquire(models.ChannelConsole, "alice", "main")
	if second.ID == first.ID {
		t.Error("idle session was reused")
	}
	if len(second.Messages) != 0 {
		t.Errorf("fresh session carries %d messages", len(second.Messages))
	}
	archived := s.Archived()
	if len(archived) != 1 || archived[0].ID != first.ID || !archived[0].Archived {
		t.Errorf("archived = %+v", archived)
	}
}

func TestArchiveIdleSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := NewStore(WithIdleThreshold(time.Hour), WithNow(func() time.Time { return clock }))

	s.Acquire(models.ChannelConsole, "alice", "main")
	clock = now.Add(30 * time.Minute)
	busy := s.Acquire(models.ChannelConsole, "bob", "main")
	busy.Append(models.Message{Role: models.RoleUser, Content: "hi", CreatedAt: clock})

	clock = now.Add(90 * time.Minute)
	retired := s.ArchiveIdle()
	if len(retired) != 1 || retired[0].Sender != "alice" {
		t.Fatalf("retired = %+v", retired)
	}
	if s.Active() != 1 {
		t.Errorf("Active = %d, want 1", s.Active())
	}
	if _, ok := s.Get(models.ChannelConsole, "bob"); !ok {
		t.Error("busy session was archived")
	}
}

func TestReleaseTrimsOversizedTranscript(t *testing.T) {
	s := NewStore()
	session := s.Acquire(models.ChannelConsole, "alice", "main")
	for i := 0; i < maxMessagesPerSession+10; i++ {
		session.Messages = append(session.Messages, models.Message{Role: models.RoleUser, Content: "m"})
	}
	s.Release(session)
	if len(session.Messages) != maxMessagesPerSession {
		t.Errorf("messages = %d, want %d", len(session.Messages), maxMessagesPerSession)
	}
}
