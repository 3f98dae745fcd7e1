package history

import (
	"context"
	"sync"
	"time"
)

// Message is one line of channel conversation, either a user's or the bot's own.
type Message struct {
	Channel string
	Nick    string
	Text    string
	Time    time.Time
}

// Archive is the durable side of the conversation memory. The in-memory ring
// is authoritative for a running process; the archive lets context survive
// restarts and is swept by the retention job.
type Archive interface {
	LogMessage(ctx context.Context, m Message) error
	RecentMessages(ctx context.Context, channel string, limit int) ([]Message, error)
}

// ring is a fixed-capacity FIFO. When full, the oldest entry is evicted.
type ring struct {
	mu  sync.Mutex
	buf []Message
	// start indexes the oldest entry, n is the live count
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Message, capacity)}
}

func (r *ring) push(m Message) {
	if r.n == len(r.buf) {
		r.buf[r.start] = m
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[(r.start+r.n)%len(r.buf)] = m
	r.n++
}

func (r *ring) snapshot(max int) []Message {
	if max <= 0 || max > r.n {
		max = r.n
	}
	out := make([]Message, 0, max)
	for i := r.n - max; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Manager keeps one bounded ring per channel. Rings are created on first
// touch and seeded from the archive so the bot does not wake up amnesiac.
type Manager struct {
	mu       sync.Mutex
	capacity int
	archive  Archive
	channels map[string]*ring
}

// NewManager creates a manager with the given per-channel capacity.
// archive may be nil, in which case messages live only in memory.
func NewManager(capacity int, archive Archive) *Manager {
	if capacity <= 0 {
		capacity = 1
	}
	return &Manager{
		capacity: capacity,
		archive:  archive,
		channels: make(map[string]*ring),
	}
}

// channelRing returns the ring for a channel, creating and seeding it on
// first use. Only the manager map lock is global; seeding holds the ring's
// own lock so slow archive reads never stall other channels.
func (m *Manager) channelRing(ctx context.Context, channel string, create bool) *ring {
	m.mu.Lock()
	r, ok := m.channels[channel]
	if !ok {
		if !create {
			m.mu.Unlock()
			return nil
		}
		r = newRing(m.capacity)
		r.mu.Lock()
		m.channels[channel] = r
		m.mu.Unlock()
		m.seed(ctx, channel, r)
		r.mu.Unlock()
		return r
	}
	m.mu.Unlock()
	return r
}

// seed loads the most recent archived lines into a freshly created ring.
// Caller holds r.mu.
func (m *Manager) seed(ctx context.Context, channel string, r *ring) {
	if m.archive == nil {
		return
	}
	msgs, err := m.archive.RecentMessages(ctx, channel, m.capacity)
	if err != nil {
		return
	}
	for _, msg := range msgs {
		r.push(msg)
	}
}

// Append records a message in the channel ring and writes it through to the
// archive. The in-memory append always happens; an archive failure is
// returned so the caller can log it.
func (m *Manager) Append(ctx context.Context, msg Message) error {
	r := m.channelRing(ctx, msg.Channel, true)
	r.mu.Lock()
	r.push(msg)
	r.mu.Unlock()

	if m.archive == nil {
		return nil
	}
	return m.archive.LogMessage(ctx, msg)
}

// Snapshot returns up to max of the most recent messages for a channel in
// chronological order. The slice is a copy; later appends do not touch it.
// A channel never seen returns nil without creating state.
func (m *Manager) Snapshot(channel string, max int) []Message {
	r := m.channelRing(context.Background(), channel, false)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(max)
}

// Forget drops the in-memory ring for a channel. Archived lines are kept
// until the retention sweep removes them.
func (m *Manager) Forget(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, channel)
}
