package assistant

import (
	"context"

	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/directives"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/llm"
	"github.com/hyunwoolee/bandi/pkg/logger"
)

// placeholderReply is shown when stripping directives consumed the
// entire model reply; the user never sees an empty message.
const placeholderReply = "..."

const (
	noticeConnectivity = "⚠️ I can't reach the model server right now. Please try again in a bit."
	noticeGeneric      = "⚠️ Something went wrong while generating a reply. Please try again."
)

// Transport delivers replies and typing signals for a named channel.
type Transport interface {
	SendMessage(ctx context.Context, channel, chatID, content string) error
	SetTyping(ctx context.Context, channel, chatID string)
	ClearTyping(ctx context.Context, channel, chatID string)
}

// Pipeline handles one coalesced inbound unit end to end: typing
// signal, context, model call, directive execution, strip, persist,
// reply. The typing indicator always clears, success or failure.
type Pipeline struct {
	assembler *Assembler
	history   *history.Store
	executor  *Executor
	model     llm.Completer
	transport Transport
}

func NewPipeline(a *Assembler, h *history.Store, e *Executor, model llm.Completer, t Transport) *Pipeline {
	return &Pipeline{
		assembler: a,
		history:   h,
		executor:  e,
		model:     model,
		transport: t,
	}
}

// Process runs the pipeline for one dispatched unit. On failure it
// sends exactly one best-effort error notice, distinguishing
// connectivity problems from everything else.
func (p *Pipeline) Process(ctx context.Context, msg bus.InboundMessage) {
	p.transport.SetTyping(ctx, msg.Channel, msg.ChatID)
	defer p.transport.ClearTyping(ctx, msg.Channel, msg.ChatID)

	if err := p.process(ctx, msg); err != nil {
		logger.ErrorCF("assistant", "pipeline failed", map[string]interface{}{
			"channel": msg.Channel,
			"chat":    msg.ChatID,
			"error":   err.Error(),
		})

		notice := noticeGeneric
		if llm.IsConnectivity(err) {
			notice = noticeConnectivity
		}
		if err := p.transport.SendMessage(ctx, msg.Channel, msg.ChatID, notice); err != nil {
			logger.WarnCF("assistant", "error notice delivery failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (p *Pipeline) process(ctx context.Context, msg bus.InboundMessage) error {
	hist, err := p.history.Recent(msg.ChatID, 0)
	if err != nil {
		return err
	}

	messages := p.assembler.BuildMessages(hist, msg.Content)

	reply, err := p.model.Complete(ctx, messages)
	if err != nil {
		return err
	}

	cmds := directives.Parse(reply.Content)
	p.executor.Apply(cmds, msg.Channel, msg.ChatID)

	visible := directives.Strip(reply.Content)
	if visible == "" {
		visible = placeholderReply
	}

	if err := p.history.Append(msg.ChatID, "user", msg.Content); err != nil {
		return err
	}
	if err := p.history.Append(msg.ChatID, "assistant", visible); err != nil {
		return err
	}

	return p.transport.SendMessage(ctx, msg.Channel, msg.ChatID, visible)
}
