package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/cibotics/cibot-go/internal/logging"
)

// EinoGenerator adapts a chat model built by the provider package to the
// Generator interface, so hosted backends plug into the same answer
// pipeline as the native Ollama client. It carries the same soft-failure
// contract: errors become fixed messages or a final stream token.
type EinoGenerator struct {
	chatModel model.ToolCallingChatModel
}

// NewEinoGenerator wraps chatModel in the Generator contract.
func NewEinoGenerator(chatModel model.ToolCallingChatModel) *EinoGenerator {
	return &EinoGenerator{chatModel: chatModel}
}

// Generate performs a single blocking completion call.
func (g *EinoGenerator) Generate(ctx context.Context, prompt string) string {
	msg, err := g.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logging.FromContext(ctx).Error("eino: generate failed", slog.Any("error", err))
		return ConnectFailedMsg
	}
	return msg.Content
}

// Stream opens a streaming completion and forwards each delta's content as
// one token.
func (g *EinoGenerator) Stream(ctx context.Context, prompt string) <-chan string {
	out := make(chan string, 16)

	go func() {
		defer close(out)

		sr, err := g.chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)})
		if err != nil {
			logging.FromContext(ctx).Error("eino: stream open failed", slog.Any("error", err))
			emit(ctx, out, ConnectFailedMsg)
			return
		}
		defer sr.Close()

		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					logging.FromContext(ctx).Error("eino: stream receive failed", slog.Any("error", err))
					emit(ctx, out, ParseFailedMsg)
				}
				return
			}
			if msg != nil && msg.Content != "" {
				if !emit(ctx, out, msg.Content) {
					return
				}
			}
		}
	}()

	return out
}
