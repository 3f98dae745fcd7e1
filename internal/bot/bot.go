package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Baughn/emul/internal/history"
	"github.com/Baughn/emul/internal/interject"
	"github.com/Baughn/emul/internal/llm"
	"github.com/Baughn/emul/internal/metrics"
	"github.com/Baughn/emul/internal/roster"
	"github.com/Baughn/emul/internal/storage"
	"github.com/Baughn/emul/internal/tools"
)

// Event is one inbound IRC message, already reduced to what the engine
// cares about.
type Event struct {
	Channel string
	Nick    string
	Text    string
	Private bool
	Time    time.Time
}

// Conn is the transport seam. The real implementation wraps an IRC
// connection; tests plug in a fake.
type Conn interface {
	SendMessage(target, text string)
	Join(channel string)
	Part(channel string)
	Nick() string
}

const (
	// IRC lines top out at 512 bytes including command and target;
	// 430 bytes of text leaves comfortable headroom.
	maxLineBytes = 430
	// pause between consecutive outbound lines so the server's flood
	// protection never kicks in
	sendInterval = 600 * time.Millisecond
	// triggers queued per channel while an orchestration runs
	runnerQueueSize = 4
)

type Options struct {
	Conn        Conn
	Roster      *roster.Service
	History     *history.Manager
	LLM         llm.Client
	Tools       *tools.Registry
	Interjecter *interject.Scheduler
	MentionGate *interject.Scheduler
	Recorder    storage.Recorder
	Log         *zap.Logger

	PromptPath    string
	HistoryTurns  int
	MaxToolRounds int
	LLMTimeout    time.Duration
}

// Bot routes inbound messages, decides when to speak and runs the
// conversation loop. One orchestration runs per channel at a time; buffer
// appends never wait on one.
type Bot struct {
	conn        Conn
	roster      *roster.Service
	history     *history.Manager
	llm         llm.Client
	registry    *tools.Registry
	interjecter *interject.Scheduler
	mentionGate *interject.Scheduler
	recorder    storage.Recorder
	log         *zap.Logger

	promptPath    string
	historyTurns  int
	maxToolRounds int
	llmTimeout    time.Duration
	retryDelay    time.Duration

	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	runners map[string]chan job
	joined  map[string]bool

	promptWarn sync.Once
}

func New(opts Options) *Bot {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 500
	}
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		conn:          opts.Conn,
		roster:        opts.Roster,
		history:       opts.History,
		llm:           opts.LLM,
		registry:      opts.Tools,
		interjecter:   opts.Interjecter,
		mentionGate:   opts.MentionGate,
		recorder:      opts.Recorder,
		log:           opts.Log,
		promptPath:    opts.PromptPath,
		historyTurns:  opts.HistoryTurns,
		maxToolRounds: opts.MaxToolRounds,
		llmTimeout:    opts.LLMTimeout,
		retryDelay:    2 * time.Second,
		limiter:       rate.NewLimiter(rate.Every(sendInterval), 1),
		ctx:           ctx,
		cancel:        cancel,
		runners:       make(map[string]chan job),
		joined:        make(map[string]bool),
	}
}

// Shutdown stops accepting work and waits for running orchestrations to
// notice the canceled context.
func (b *Bot) Shutdown() {
	b.cancel()
	b.wg.Wait()
}

// HandleMessage is the single entry point for inbound messages. It must
// stay cheap: everything slow happens on a per-channel worker.
func (b *Bot) HandleMessage(ev Event) {
	if ev.Private {
		metrics.MessagesSeen.WithLabelValues("private").Inc()
		b.handlePrivate(ev)
		return
	}
	// servers with echo-message enabled hand us our own lines back
	if strings.EqualFold(ev.Nick, b.conn.Nick()) {
		return
	}
	metrics.MessagesSeen.WithLabelValues("channel").Inc()

	if err := b.history.Append(b.ctx, history.Message{
		Channel: ev.Channel,
		Nick:    ev.Nick,
		Text:    ev.Text,
		Time:    ev.Time,
	}); err != nil {
		b.log.Warn("failed to archive message",
			zap.String("channel", ev.Channel), zap.Error(err))
	}

	switch {
	case b.isAddressed(ev.Text):
		b.enqueue(job{ev: ev, trigger: triggerAddressed})
	case b.mentionsNick(ev.Text):
		// gate won: respond without asking the model whether we were meant
		confirm := !b.mentionGate.Evaluate(ev.Channel, false)
		b.enqueue(job{ev: ev, trigger: triggerMention, confirm: confirm})
	default:
		if b.interjecter.Evaluate(ev.Channel, false) {
			b.enqueue(job{ev: ev, trigger: triggerInterject})
		}
	}
}

func (b *Bot) handlePrivate(ev Event) {
	if strings.HasPrefix(strings.TrimSpace(ev.Text), "!") {
		b.handleCommand(ev)
		return
	}
	b.reply(ev.Nick, "I do my chatting in channels! Admins can steer me with commands, see !help.")
}

func (b *Bot) enqueue(j job) {
	b.mu.Lock()
	ch, ok := b.runners[j.ev.Channel]
	if !ok {
		ch = make(chan job, runnerQueueSize)
		b.runners[j.ev.Channel] = ch
		b.wg.Add(1)
		go b.runWorker(ch)
	}
	b.mu.Unlock()

	select {
	case ch <- j:
	default:
		metrics.DroppedTriggers.Inc()
		b.log.Warn("trigger dropped, channel queue full",
			zap.String("channel", j.ev.Channel), zap.String("trigger", j.trigger))
	}
}

func (b *Bot) runWorker(ch chan job) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case j := <-ch:
			b.runJob(b.ctx, j)
		}
	}
}

// NoteJoined is called by the transport when the bot itself enters a channel.
func (b *Bot) NoteJoined(channel string) {
	b.mu.Lock()
	b.joined[channel] = true
	b.mu.Unlock()
	b.log.Info("joined channel", zap.String("channel", channel))
}

// NoteParted is called when the bot leaves or is kicked. The channel's
// conversation state goes with it.
func (b *Bot) NoteParted(channel string) {
	b.forgetChannel(channel)
	b.log.Info("left channel", zap.String("channel", channel))
}

func (b *Bot) forgetChannel(channel string) {
	b.mu.Lock()
	delete(b.joined, channel)
	b.mu.Unlock()
	b.history.Forget(channel)
	b.interjecter.Forget(channel)
	b.mentionGate.Forget(channel)
}

func (b *Bot) isJoined(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joined[channel]
}

func (b *Bot) reply(target, text string) {
	b.sendText(b.ctx, target, text)
}

// sendText splits a reply into IRC-sized lines and paces them out.
func (b *Bot) sendText(ctx context.Context, target, text string) {
	for _, line := range splitMessage(text, maxLineBytes) {
		if err := b.limiter.Wait(ctx); err != nil {
			return
		}
		b.conn.SendMessage(target, line)
		metrics.LinesSent.Inc()
	}
}

func (b *Bot) isAddressed(text string) bool {
	nick := strings.ToLower(b.conn.Nick())
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(lower, nick+":") || strings.HasPrefix(lower, nick+",") {
		return true
	}
	fields := strings.Fields(lower)
	return len(fields) > 0 && fields[0] == nick
}

func (b *Bot) mentionsNick(text string) bool {
	nick := strings.ToLower(b.conn.Nick())
	return strings.Contains(strings.ToLower(text), " "+nick)
}
