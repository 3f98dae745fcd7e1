package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baughn/emul/internal/history"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdminAddRemoveIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	added, err := s.AddAdmin(ctx, "alice")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = s.AddAdmin(ctx, "alice")
	if err != nil || added {
		t.Fatalf("second add should be a no-op: added=%v err=%v", added, err)
	}
	// case-insensitive primary key
	added, err = s.AddAdmin(ctx, "ALICE")
	if err != nil || added {
		t.Fatalf("case-folded duplicate should be a no-op: added=%v err=%v", added, err)
	}

	removed, err := s.RemoveAdmin(ctx, "Alice")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	removed, err = s.RemoveAdmin(ctx, "alice")
	if err != nil || removed {
		t.Fatalf("removing a missing admin should be a no-op: removed=%v err=%v", removed, err)
	}
}

func TestChannelRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, ch := range []string{"#zeta", "#alpha"} {
		if added, err := s.AddChannel(ctx, ch); err != nil || !added {
			t.Fatalf("add %s: added=%v err=%v", ch, added, err)
		}
	}
	got, err := s.Channels(ctx)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if len(got) != 2 || got[0] != "#alpha" || got[1] != "#zeta" {
		t.Fatalf("unexpected channel list: %v", got)
	}
}

func TestEnsureInitialAdmin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seeded, err := s.EnsureInitialAdmin(ctx, "baughn")
	if err != nil || !seeded {
		t.Fatalf("seed on empty table: seeded=%v err=%v", seeded, err)
	}
	seeded, err = s.EnsureInitialAdmin(ctx, "mallory")
	if err != nil || seeded {
		t.Fatalf("seed must not fire on a populated table: seeded=%v err=%v", seeded, err)
	}
	admins, err := s.Admins(ctx)
	if err != nil || len(admins) != 1 || admins[0] != "baughn" {
		t.Fatalf("unexpected admins: %v err=%v", admins, err)
	}

	if seeded, err := s.EnsureInitialAdmin(ctx, ""); err != nil || seeded {
		t.Fatalf("empty seed nick should do nothing: seeded=%v err=%v", seeded, err)
	}
}

func TestMessageLogOrderAndPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i := 0; i < 5; i++ {
		err := s.LogMessage(ctx, history.Message{
			Channel: "#test",
			Nick:    "alice",
			Text:    []string{"a", "b", "c", "d", "e"}[i],
			Time:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("log message: %v", err)
		}
	}
	s.LogMessage(ctx, history.Message{Channel: "#other", Nick: "bob", Text: "x", Time: base})

	got, err := s.RecentMessages(ctx, "#test", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].Text != "c" || got[2].Text != "e" {
		t.Fatalf("unexpected tail: %+v", got)
	}
	if got[0].Channel != "#test" || got[0].Nick != "alice" {
		t.Fatalf("fields lost on round trip: %+v", got[0])
	}

	pruned, err := s.PruneMessagesBefore(ctx, base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	// three lines from #test plus the one from #other
	if pruned != 4 {
		t.Fatalf("pruned %d rows, want 4", pruned)
	}
	rest, err := s.RecentMessages(ctx, "#test", 10)
	if err != nil || len(rest) != 2 {
		t.Fatalf("unexpected survivors: %+v err=%v", rest, err)
	}
}
