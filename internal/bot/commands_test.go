package bot

import (
	"strings"
	"testing"
)

func (c *fakeConn) lastSent(t *testing.T) sentLine {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatalf("no lines were sent")
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestHelpIsOpenToEveryone(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("randomer", "!help"))

	got := e.conn.lastSent(t)
	if got.target != "randomer" {
		t.Fatalf("help went to %q", got.target)
	}
	for _, verb := range []string{"!join", "!part", "!add_admin", "!del_admin", "!admins", "!channels", "!interject"} {
		if !strings.Contains(got.text, verb) {
			t.Fatalf("help is missing %s: %q", verb, got.text)
		}
	}
}

func TestNonAdminCommandsDenied(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("randomer", "!join #sneaky"))

	if got := e.conn.lastSent(t); got.text != denialLine {
		t.Fatalf("want the denial line, got %q", got.text)
	}
	if e.roster.IsChannel("#sneaky") {
		t.Fatalf("denied command still mutated the roster")
	}
	if len(e.conn.joined()) != 0 {
		t.Fatalf("denied command still joined: %v", e.conn.joined())
	}
}

func TestJoinStoresAndJoins(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!join lounge"))

	if !e.roster.IsChannel("#lounge") {
		t.Fatalf("channel was not stored")
	}
	if joins := e.conn.joined(); len(joins) != 1 || joins[0] != "#lounge" {
		t.Fatalf("bad join calls: %v", joins)
	}
	got := e.conn.lastSent(t)
	if !strings.Contains(got.text, "#lounge") || !strings.Contains(got.text, "joining now") {
		t.Fatalf("confirmation should name the channel: %q", got.text)
	}
}

func TestJoinAgainIsIdempotentButRejoins(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!join #lounge"))
	e.bot.HandleMessage(privateMsg("boss", "!join #lounge"))

	if got := e.conn.lastSent(t); !strings.Contains(got.text, "already know about #lounge") {
		t.Fatalf("replay should say so: %q", got.text)
	}
	// the rejoin is deliberate, it repairs a kicked session
	if joins := e.conn.joined(); len(joins) != 2 {
		t.Fatalf("replay should still join: %v", joins)
	}
	if got := len(e.roster.Channels()); got != 1 {
		t.Fatalf("replay duplicated the stored channel: %d", got)
	}
}

func TestPartRemovesAndForgets(t *testing.T) {
	e := newEnv(t, nil)
	e.bot.HandleMessage(privateMsg("boss", "!join #lounge"))
	e.bot.NoteJoined("#lounge")
	e.bot.HandleMessage(Event{Channel: "#lounge", Nick: "alice", Text: "hi all"})

	e.bot.HandleMessage(privateMsg("boss", "!part #lounge"))

	if e.roster.IsChannel("#lounge") {
		t.Fatalf("channel still stored after part")
	}
	if parts := e.conn.parted(); len(parts) != 1 || parts[0] != "#lounge" {
		t.Fatalf("bad part calls: %v", parts)
	}
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "won't rejoin") {
		t.Fatalf("part confirmation: %q", got.text)
	}
	if e.bot.isJoined("#lounge") {
		t.Fatalf("joined flag survived the part")
	}
	if snap := e.history.Snapshot("#lounge", 10); len(snap) != 0 {
		t.Fatalf("history survived the part: %+v", snap)
	}
}

func TestPartWorksForUntrackedChannel(t *testing.T) {
	e := newEnv(t, nil)
	e.bot.NoteJoined("#dropin")

	e.bot.HandleMessage(privateMsg("boss", "!part #dropin"))

	if parts := e.conn.parted(); len(parts) != 1 || parts[0] != "#dropin" {
		t.Fatalf("session-only channel should still be parted: %v", parts)
	}
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "session") {
		t.Fatalf("reply should say this was session-only: %q", got.text)
	}
}

func TestPartUnknownChannel(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!part #nowhere"))

	if len(e.conn.parted()) != 0 {
		t.Fatalf("nothing to part: %v", e.conn.parted())
	}
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "wasn't set to auto-join") {
		t.Fatalf("reply: %q", got.text)
	}
}

func TestAddAndRemoveAdmin(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!add_admin carol"))
	if !e.roster.IsAdmin("carol") {
		t.Fatalf("carol should be an admin now")
	}
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "'carol' is now an admin") {
		t.Fatalf("confirmation: %q", got.text)
	}

	// the grant is effective immediately
	e.bot.HandleMessage(privateMsg("carol", "!del_admin boss"))
	if e.roster.IsAdmin("boss") {
		t.Fatalf("boss should have been removed by the new admin")
	}
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "'boss' is no longer an admin") {
		t.Fatalf("confirmation: %q", got.text)
	}
}

func TestAddAdminRejectsInvalidNick(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!add_admin #lounge"))

	if got := e.conn.lastSent(t); !strings.Contains(got.text, "doesn't look like a nick") {
		t.Fatalf("validation reply: %q", got.text)
	}
	if got := e.roster.Admins(); len(got) != 1 {
		t.Fatalf("invalid nick must not be stored: %v", got)
	}
}

func TestDelAdminRefusesSelf(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!del_admin BOSS"))

	if got := e.conn.lastSent(t); got.text != "You can't remove yourself, silly!" {
		t.Fatalf("self-removal reply: %q", got.text)
	}
	if !e.roster.IsAdmin("boss") {
		t.Fatalf("self-removal went through")
	}
}

func TestListAdminsAndChannels(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!channels"))
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "not set to auto-join any") {
		t.Fatalf("empty channel list reply: %q", got.text)
	}

	e.bot.HandleMessage(privateMsg("boss", "!join #lounge"))
	e.bot.HandleMessage(privateMsg("boss", "!channels"))
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "Auto-join channels: #lounge") {
		t.Fatalf("channel list reply: %q", got.text)
	}

	e.bot.HandleMessage(privateMsg("boss", "!admins"))
	if got := e.conn.lastSent(t); !strings.Contains(got.text, "Registered admins: boss") {
		t.Fatalf("admin list reply: %q", got.text)
	}
}

func TestUnknownCommand(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!frobnicate the widget"))

	if got := e.conn.lastSent(t); got.text != unknownLine {
		t.Fatalf("unknown command reply: %q", got.text)
	}
}

func TestUsageHints(t *testing.T) {
	e := newEnv(t, nil)

	for cmd, want := range map[string]string{
		"!join":            "Usage: !join #channel",
		"!part":            "Usage: !part #channel",
		"!add_admin":       "Usage: !add_admin <nickname>",
		"!del_admin":       "Usage: !del_admin <nickname>",
		"!interject":       "Usage: !interject #channel",
		"!join #a #b":      "Usage: !join #channel",
		"!add_admin a b c": "Usage: !add_admin <nickname>",
	} {
		e.bot.HandleMessage(privateMsg("boss", cmd))
		if got := e.conn.lastSent(t); got.text != want {
			t.Fatalf("%q: got %q, want %q", cmd, got.text, want)
		}
	}
}

func TestInterjectCommandForcesChannel(t *testing.T) {
	e := newEnv(t, nil)

	e.bot.HandleMessage(privateMsg("boss", "!interject #lounge"))

	if got := e.conn.lastSent(t); !strings.Contains(got.text, "#lounge") {
		t.Fatalf("confirmation should name the channel: %q", got.text)
	}
	// the scheduler never fires on its own in this env, so a firing
	// proves the force flag was set for exactly that channel
	if e.interjecter.Evaluate("#other", false) {
		t.Fatalf("force leaked to another channel")
	}
	if !e.interjecter.Evaluate("#lounge", false) {
		t.Fatalf("force flag was not set")
	}
}

func TestStoreFailureGetsReported(t *testing.T) {
	e := newEnv(t, nil)
	e.repo.setFail(true)

	e.bot.HandleMessage(privateMsg("boss", "!join #lounge"))

	if got := e.conn.lastSent(t); got.text != storeDown {
		t.Fatalf("store failure reply: %q", got.text)
	}
	if e.roster.IsChannel("#lounge") {
		t.Fatalf("failed write must not land in memory")
	}
	if len(e.conn.joined()) != 0 {
		t.Fatalf("failed write must not join: %v", e.conn.joined())
	}
}

func TestEveryCommandAnswers(t *testing.T) {
	e := newEnv(t, nil)

	cmds := []string{
		"!help", "!join #a", "!part #a", "!add_admin x", "!del_admin x",
		"!admins", "!channels", "!interject #a", "!nonsense", "!",
	}
	for i, cmd := range cmds {
		e.bot.HandleMessage(privateMsg("boss", cmd))
		if got := e.conn.sentCount(); got != i+1 {
			t.Fatalf("command %q left no reply (sent=%d)", cmd, got)
		}
	}
}
