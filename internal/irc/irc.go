// Package irc adapts the go-ircevent client to the conversation engine.
// It owns connection lifecycle, NickServ identification and autojoin; the
// engine never sees raw protocol events.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	ircevent "github.com/thoj/go-ircevent"
	"go.uber.org/zap"

	"github.com/Baughn/emul/internal/bot"
)

const (
	connectBackoffMin = 5 * time.Second
	connectBackoffMax = 5 * time.Minute
)

// Engine is the inbound side: everything the adapter reports upward.
type Engine interface {
	HandleMessage(bot.Event)
	NoteJoined(channel string)
	NoteParted(channel string)
}

type Options struct {
	Server string
	Port   int
	Nick   string
	UseTLS bool
	// NickservPassword, when set, delays autojoin until NickServ
	// acknowledges us, so channels with registration-only modes let us in.
	NickservPassword string
	// Autojoin is consulted on every (re)connect for the channels to enter.
	Autojoin func() []string
	Log      *zap.Logger
}

type Conn struct {
	conn *ircevent.Connection
	opts Options
	log  *zap.Logger
}

var _ bot.Conn = (*Conn)(nil)

func New(opts Options) *Conn {
	c := ircevent.IRC(opts.Nick, opts.Nick)
	c.UseTLS = opts.UseTLS
	if opts.UseTLS {
		c.TLSConfig = &tls.Config{ServerName: opts.Server}
	}
	c.Version = "Emul (github.com/Baughn/emul)"
	c.QuitMessage = "time for a nap!"
	c.PingFreq = 3 * time.Minute
	c.Timeout = time.Minute
	c.Log = zap.NewStdLog(opts.Log.Named("ircevent"))
	return &Conn{conn: c, opts: opts, log: opts.Log}
}

// Attach registers the protocol callbacks that feed the engine. Call once,
// before Run.
func (c *Conn) Attach(engine Engine) {
	c.conn.AddCallback("001", func(e *ircevent.Event) {
		if c.opts.NickservPassword != "" {
			c.log.Info("identifying with nickserv")
			c.conn.Privmsg("NickServ", "IDENTIFY "+c.opts.NickservPassword)
			return
		}
		c.joinStored()
	})

	c.conn.AddCallback("NOTICE", func(e *ircevent.Event) {
		if c.opts.NickservPassword == "" || !strings.EqualFold(e.Nick, "NickServ") {
			return
		}
		lower := strings.ToLower(e.Message())
		switch {
		case strings.Contains(lower, "you are now recognized"),
			strings.Contains(lower, "password accepted"),
			strings.Contains(lower, "you are now identified"):
			c.log.Info("nickserv identification accepted")
			c.joinStored()
		case strings.Contains(lower, "is not a registered nickname"):
			c.log.Warn("nick is not registered with nickserv, joining anyway")
			c.joinStored()
		case strings.Contains(lower, "password incorrect"),
			strings.Contains(lower, "invalid password"):
			c.log.Error("nickserv rejected the password, joining unidentified")
			c.joinStored()
		}
	})

	c.conn.AddCallback("PRIVMSG", func(e *ircevent.Event) {
		if len(e.Arguments) == 0 {
			return
		}
		target := e.Arguments[0]
		ev := bot.Event{Nick: e.Nick, Text: e.Message(), Time: time.Now()}
		if strings.EqualFold(target, c.conn.GetNick()) {
			ev.Private = true
			ev.Channel = e.Nick
		} else {
			ev.Channel = target
		}
		engine.HandleMessage(ev)
	})

	c.conn.AddCallback("JOIN", func(e *ircevent.Event) {
		if len(e.Arguments) > 0 && strings.EqualFold(e.Nick, c.conn.GetNick()) {
			engine.NoteJoined(e.Arguments[0])
		}
	})

	c.conn.AddCallback("PART", func(e *ircevent.Event) {
		if len(e.Arguments) > 0 && strings.EqualFold(e.Nick, c.conn.GetNick()) {
			engine.NoteParted(e.Arguments[0])
		}
	})

	c.conn.AddCallback("KICK", func(e *ircevent.Event) {
		if len(e.Arguments) >= 2 && strings.EqualFold(e.Arguments[1], c.conn.GetNick()) {
			c.log.Warn("kicked from channel",
				zap.String("channel", e.Arguments[0]),
				zap.String("by", e.Nick),
				zap.String("reason", e.Message()))
			engine.NoteParted(e.Arguments[0])
		}
	})
}

// Run connects and processes events until the context is canceled. The
// initial connect retries with doubling backoff; once a session exists the
// client library reconnects on its own.
func (c *Conn) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.opts.Server, c.opts.Port)

	backoff := connectBackoffMin
	for {
		err := c.conn.Connect(addr)
		if err == nil {
			break
		}
		c.log.Warn("irc connect failed",
			zap.String("addr", addr),
			zap.Duration("retry_in", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > connectBackoffMax {
			backoff = connectBackoffMax
		}
	}
	c.log.Info("connected to irc", zap.String("addr", addr), zap.String("nick", c.opts.Nick))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			c.conn.Quit()
		case <-stop:
		}
	}()

	c.conn.Loop()
	close(stop)
	wg.Wait()
	return ctx.Err()
}

func (c *Conn) joinStored() {
	channels := c.opts.Autojoin()
	if len(channels) == 0 {
		c.log.Info("no autojoin channels configured yet")
		return
	}
	for _, ch := range channels {
		c.conn.Join(ch)
	}
}

func (c *Conn) SendMessage(target, text string) { c.conn.Privmsg(target, text) }

func (c *Conn) Join(channel string) { c.conn.Join(channel) }

func (c *Conn) Part(channel string) { c.conn.Part(channel) }

func (c *Conn) Nick() string { return c.conn.GetNick() }
