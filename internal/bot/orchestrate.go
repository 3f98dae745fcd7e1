package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Baughn/emul/internal/history"
	"github.com/Baughn/emul/internal/llm"
	"github.com/Baughn/emul/internal/metrics"
	"github.com/Baughn/emul/internal/storage"
)

const (
	triggerAddressed = "addressed"
	triggerMention   = "mention"
	triggerInterject = "interject"
)

const (
	// transient LLM failures are retried this many times on top of the
	// first attempt; semantic failures never are
	llmRetries = 2

	errorLine    = "Eeep! I had trouble thinking about that..."
	degradedLine = "Wawa~ I got lost in my own thoughts and never found my words. Ask me again?"
)

// formatRules rides behind the persona so the model produces text that
// survives being pasted into an IRC channel.
const formatRules = "You are chatting on IRC. Reply in plain text only: no markdown, " +
	"no code fences, no role prefixes. Keep replies conversational and short, " +
	"a line or two unless someone asks for more."

// job is one queued trigger for a channel worker.
type job struct {
	ev      Event
	trigger string
	// confirm marks a subtle mention that still needs the cheap
	// "is this aimed at me" model check before we speak
	confirm bool
}

// runJob is the whole life of one conversation run: confirm the trigger,
// build the request, loop the model against the tool registry, emit exactly
// one reply. It runs on the channel's worker goroutine.
func (b *Bot) runJob(ctx context.Context, j job) {
	if j.confirm && !b.mentionAimedAtMe(ctx, j.ev) {
		return
	}
	metrics.Triggers.WithLabelValues(j.trigger).Inc()

	runID := uuid.NewString()
	log := b.log.With(
		zap.String("run_id", runID),
		zap.String("channel", j.ev.Channel),
		zap.String("trigger", j.trigger))
	log.Info("conversation run started", zap.String("nick", j.ev.Nick))

	reply, last, toolNames := b.converse(ctx, j, log)
	if ctx.Err() != nil {
		log.Warn("run abandoned at shutdown")
		return
	}

	if err := b.history.Append(ctx, history.Message{
		Channel: j.ev.Channel,
		Nick:    b.conn.Nick(),
		Text:    reply,
		Time:    time.Now(),
	}); err != nil {
		log.Warn("failed to archive reply", zap.Error(err))
	}
	if b.recorder != nil {
		if err := b.recorder.AppendInteraction(storage.Event{
			Timestamp:   time.Now().UTC(),
			RunID:       runID,
			Channel:     j.ev.Channel,
			Nick:        j.ev.Nick,
			Trigger:     j.trigger,
			UserMessage: j.ev.Text,
			Reply:       reply,
			ToolCalls:   toolNames,
			Model:       last.Model,
			TotalTokens: last.TotalTokens,
		}); err != nil {
			log.Warn("failed to record interaction", zap.Error(err))
		}
	}
	b.sendText(ctx, j.ev.Channel, reply)
	log.Info("conversation run finished",
		zap.Int("reply_len", len(reply)),
		zap.Strings("tools", toolNames))
}

// converse drives the model/tool loop. Tools are offered while the round
// count is below the ceiling and withheld on the last round, so the loop
// makes at most maxToolRounds+1 model calls before giving up.
func (b *Bot) converse(ctx context.Context, j job, log *zap.Logger) (reply string, last llm.Response, toolNames []string) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: b.systemPrompt()},
		{Role: llm.RoleUser, Content: b.triggerPrompt(j)},
	}

	for round := 0; round <= b.maxToolRounds; round++ {
		var specs []llm.Tool
		if round < b.maxToolRounds {
			specs = b.registry.Specs()
		}

		resp, err := b.generate(ctx, msgs, specs)
		if err != nil {
			log.Error("llm request failed", zap.Int("round", round), zap.Error(err))
			return j.ev.Nick + ": " + errorLine, last, toolNames
		}
		last = resp

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) == "" {
				log.Warn("model returned an empty reply", zap.Int("round", round))
				break
			}
			return resp.Content, last, toolNames
		}
		if round == b.maxToolRounds {
			// tools were withheld and the model asked anyway
			log.Warn("model requested tools past the round ceiling")
			break
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		var images []llm.ImageData
		for _, call := range resp.ToolCalls {
			toolNames = append(toolNames, call.Function.Name)
			out := b.registry.Dispatch(ctx, call)
			status := "ok"
			if out.Err != nil {
				status = "error"
				log.Warn("tool call failed",
					zap.String("tool", call.Function.Name), zap.Error(out.Err))
			}
			metrics.ToolCalls.WithLabelValues(call.Function.Name, status).Inc()
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    toolReply(out.Content, out.Err),
			})
			if out.Image != nil {
				images = append(images, *out.Image)
			}
		}
		if len(images) > 0 {
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Images: images})
		}
	}
	return j.ev.Nick + ": " + degradedLine, last, toolNames
}

// generate makes one model call with the per-call deadline, retrying
// transient failures. A canceled parent context is never retried.
func (b *Bot) generate(ctx context.Context, msgs []llm.Message, specs []llm.Tool) (llm.Response, error) {
	var resp llm.Response
	var err error
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, b.llmTimeout)
		start := time.Now()
		if len(specs) > 0 {
			resp, err = b.llm.GenerateWithTools(callCtx, msgs, specs)
		} else {
			resp, err = b.llm.Generate(callCtx, msgs)
		}
		cancel()
		metrics.LLMLatency.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.LLMRequests.WithLabelValues("ok").Inc()
			return resp, nil
		}
		metrics.LLMRequests.WithLabelValues("error").Inc()
		if ctx.Err() != nil || attempt >= llmRetries {
			return llm.Response{}, err
		}
		b.log.Warn("llm request failed, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return llm.Response{}, err
		case <-time.After(b.retryDelay):
		}
	}
}

// mentionAimedAtMe rations subtle-mention responses: a message that merely
// names the bot mid-sentence only deserves a reply when the model thinks it
// was actually directed at us. Any failure means staying quiet, which is
// the polite default for an uninvited comment.
func (b *Bot) mentionAimedAtMe(ctx context.Context, ev Event) bool {
	nick := b.conn.Nick()
	system := fmt.Sprintf(
		"You are %s. Check if the provided message is aimed at %s, or if it is merely a mention. Respond with a single word, \"respond\" or \"mention\".",
		nick, nick)

	callCtx, cancel := context.WithTimeout(ctx, b.llmTimeout)
	defer cancel()
	resp, err := b.llm.Generate(callCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: ev.Text},
	})
	if err != nil {
		b.log.Warn("mention check failed, staying quiet",
			zap.String("channel", ev.Channel), zap.Error(err))
		return false
	}
	return strings.Contains(strings.ToLower(resp.Content), "respond")
}

// systemPrompt is the persona file plus the fixed IRC formatting rules.
// The file is re-read per run so persona edits land without a restart.
func (b *Bot) systemPrompt() string {
	persona := b.persona()
	if persona == "" {
		return formatRules
	}
	return persona + "\n\n" + formatRules
}

func (b *Bot) persona() string {
	data, err := os.ReadFile(b.promptPath)
	if err != nil {
		b.promptWarn.Do(func() {
			b.log.Warn("persona prompt unreadable, continuing without one",
				zap.String("path", b.promptPath), zap.Error(err))
		})
		return ""
	}
	return strings.TrimSpace(string(data))
}

// triggerPrompt packs the channel history and the reason we are speaking
// into the single user turn the conversation starts from.
func (b *Bot) triggerPrompt(j job) string {
	snap := b.history.Snapshot(j.ev.Channel, b.historyTurns)
	lines := make([]string, 0, len(snap))
	for _, m := range snap {
		lines = append(lines, fmt.Sprintf("%s %s: %s", m.Channel, m.Nick, m.Text))
	}
	formatted := strings.Join(lines, "\n")

	if j.trigger == triggerInterject {
		return fmt.Sprintf(
			"History:\n%s\n\nCurrent trigger: Random chance (interject your opinion in the current conversation)",
			formatted)
	}
	return fmt.Sprintf(
		"History:\n%s\n\nCurrent Trigger from %s:\n%s",
		formatted, j.ev.Nick, j.ev.Text)
}

// toolReply wraps a tool outcome the way the model expects to see it:
// {"result": ...} on success, {"error": ...} on failure.
func toolReply(content string, err error) string {
	var payload map[string]string
	if err != nil {
		payload = map[string]string{"error": err.Error()}
	} else {
		payload = map[string]string{"result": content}
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		return `{"error": "unencodable tool result"}`
	}
	return string(data)
}
