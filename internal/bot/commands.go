package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Baughn/emul/internal/roster"
)

const commandTimeout = 10 * time.Second

const (
	denialLine = "Sorry, I only take commands from registered admins, desu~"
	helpLine   = "Admin commands: !join <#chan>, !part <#chan>, !add_admin <nick>, " +
		"!del_admin <nick>, !admins, !channels, !interject <#chan>, !help"
	unknownLine = "Hmm? Unknown command or format. Try !help."
	storeDown   = "Uh oh, my memory isn't working right now. Try again in a bit?"
)

// handleCommand parses one private-message command. Every command gets a
// reply: a confirmation, a usage hint or a denial, never silence. Only
// !help works without admin rights.
func (b *Bot) handleCommand(ev Event) {
	fields := strings.Fields(ev.Text)
	verb := strings.ToLower(fields[0])

	if verb == "!help" {
		b.reply(ev.Nick, helpLine)
		return
	}
	if !b.roster.IsAdmin(ev.Nick) {
		b.log.Warn("non-admin command attempt",
			zap.String("nick", ev.Nick), zap.String("verb", verb))
		b.reply(ev.Nick, denialLine)
		return
	}
	b.log.Info("admin command",
		zap.String("nick", ev.Nick), zap.String("command", ev.Text))

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch verb {
	case "!join":
		b.cmdJoin(ctx, ev, fields[1:])
	case "!part":
		b.cmdPart(ctx, ev, fields[1:])
	case "!add_admin":
		b.cmdAddAdmin(ctx, ev, fields[1:])
	case "!del_admin":
		b.cmdDelAdmin(ctx, ev, fields[1:])
	case "!admins":
		b.cmdListAdmins(ev)
	case "!channels":
		b.cmdListChannels(ev)
	case "!interject":
		b.cmdInterject(ev, fields[1:])
	default:
		b.reply(ev.Nick, unknownLine)
	}
}

func (b *Bot) cmdJoin(ctx context.Context, ev Event, args []string) {
	if len(args) != 1 {
		b.reply(ev.Nick, "Usage: !join #channel")
		return
	}
	channel := roster.NormalizeChannel(args[0])
	added, err := b.roster.AddChannel(ctx, channel)
	switch {
	case errors.Is(err, roster.ErrInvalidName):
		b.reply(ev.Nick, fmt.Sprintf("%q doesn't look like a channel I can join.", args[0]))
	case err != nil:
		b.log.Error("failed to store channel", zap.String("channel", channel), zap.Error(err))
		b.reply(ev.Nick, storeDown)
	case added:
		b.conn.Join(channel)
		b.reply(ev.Nick, fmt.Sprintf("Okay! Added %s and joining now!", channel))
	default:
		// already stored; join anyway in case we were kicked out
		b.conn.Join(channel)
		b.reply(ev.Nick, fmt.Sprintf("I already know about %s!", channel))
	}
}

func (b *Bot) cmdPart(ctx context.Context, ev Event, args []string) {
	if len(args) != 1 {
		b.reply(ev.Nick, "Usage: !part #channel")
		return
	}
	channel := roster.NormalizeChannel(args[0])
	removed, err := b.roster.RemoveChannel(ctx, channel)
	switch {
	case errors.Is(err, roster.ErrInvalidName):
		b.reply(ev.Nick, fmt.Sprintf("%q doesn't look like a channel name.", args[0]))
	case err != nil:
		b.log.Error("failed to remove channel", zap.String("channel", channel), zap.Error(err))
		b.reply(ev.Nick, storeDown)
	case removed:
		b.conn.Part(channel)
		b.forgetChannel(channel)
		b.reply(ev.Nick, fmt.Sprintf("Got it! Leaving %s and won't rejoin automatically.", channel))
	case b.isJoined(channel):
		b.conn.Part(channel)
		b.forgetChannel(channel)
		b.reply(ev.Nick, fmt.Sprintf("Okay, leaving %s for this session (wasn't set to auto-join).", channel))
	default:
		b.reply(ev.Nick, fmt.Sprintf("I wasn't set to auto-join %s anyway.", channel))
	}
}

func (b *Bot) cmdAddAdmin(ctx context.Context, ev Event, args []string) {
	if len(args) != 1 {
		b.reply(ev.Nick, "Usage: !add_admin <nickname>")
		return
	}
	added, err := b.roster.AddAdmin(ctx, args[0])
	switch {
	case errors.Is(err, roster.ErrInvalidName):
		b.reply(ev.Nick, fmt.Sprintf("%q doesn't look like a nick I can use.", args[0]))
	case err != nil:
		b.log.Error("failed to store admin", zap.String("admin", args[0]), zap.Error(err))
		b.reply(ev.Nick, storeDown)
	case added:
		b.reply(ev.Nick, fmt.Sprintf("Okay, '%s' is now an admin!", args[0]))
	default:
		b.reply(ev.Nick, fmt.Sprintf("Failed to add '%s' (maybe already an admin?).", args[0]))
	}
}

func (b *Bot) cmdDelAdmin(ctx context.Context, ev Event, args []string) {
	if len(args) != 1 {
		b.reply(ev.Nick, "Usage: !del_admin <nickname>")
		return
	}
	if strings.EqualFold(args[0], ev.Nick) {
		b.reply(ev.Nick, "You can't remove yourself, silly!")
		return
	}
	removed, err := b.roster.RemoveAdmin(ctx, args[0])
	switch {
	case errors.Is(err, roster.ErrInvalidName):
		b.reply(ev.Nick, fmt.Sprintf("%q doesn't look like a nick.", args[0]))
	case err != nil:
		b.log.Error("failed to remove admin", zap.String("admin", args[0]), zap.Error(err))
		b.reply(ev.Nick, storeDown)
	case removed:
		b.reply(ev.Nick, fmt.Sprintf("Okay, '%s' is no longer an admin.", args[0]))
	default:
		b.reply(ev.Nick, fmt.Sprintf("Failed to remove '%s' (maybe not an admin?).", args[0]))
	}
}

func (b *Bot) cmdListAdmins(ev Event) {
	admins := b.roster.Admins()
	if len(admins) == 0 {
		b.reply(ev.Nick, "There are no registered admins!")
		return
	}
	b.reply(ev.Nick, "Registered admins: "+strings.Join(admins, ", "))
}

func (b *Bot) cmdListChannels(ev Event) {
	channels := b.roster.Channels()
	if len(channels) == 0 {
		b.reply(ev.Nick, "I'm not set to auto-join any channels.")
		return
	}
	b.reply(ev.Nick, "Auto-join channels: "+strings.Join(channels, ", "))
}

func (b *Bot) cmdInterject(ev Event, args []string) {
	if len(args) != 1 {
		b.reply(ev.Nick, "Usage: !interject #channel")
		return
	}
	channel := roster.NormalizeChannel(args[0])
	b.interjecter.ForceNext(channel)
	b.reply(ev.Nick, fmt.Sprintf("Okay, I'll try to interject in %s soon!", channel))
}
