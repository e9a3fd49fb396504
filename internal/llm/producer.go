package llm

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/internal/stream"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

// Producer streams completions from a Client in the same framing the chat
// backend uses: raw text chunks, then the stop sentinel and a usage object.
type Producer struct {
	client    Client
	maxTokens int
	log       *logger.Logger
}

// NewProducer creates a producer over client.
func NewProducer(client Client, maxTokens int, log *logger.Logger) *Producer {
	return &Producer{client: client, maxTokens: maxTokens, log: log.OrNop()}
}

// Name returns the provider name.
func (p *Producer) Name() string {
	return p.client.Name()
}

// Stream starts a completion and returns its framed body. Closing the body
// aborts the completion.
func (p *Producer) Stream(ctx context.Context, req *model.StreamRequest) (io.ReadCloser, error) {
	creq := completionRequest(req, p.maxTokens)
	pr, pw := io.Pipe()

	go func() {
		resp, err := p.client.CompleteStream(ctx, creq, func(token string, _ int) error {
			_, err := io.WriteString(pw, token)
			return err
		})
		if err != nil {
			p.log.Warn("completion stream failed",
				zap.String("provider", p.client.Name()),
				zap.String("model", creq.Model),
				zap.Error(err),
			)
			pw.CloseWithError(err)
			return
		}

		_, err = io.WriteString(pw, stream.Sentinel+usageTrailer(resp))
		pw.CloseWithError(err)

		p.log.Debug("completion stream finished",
			zap.String("provider", p.client.Name()),
			zap.String("model", resp.Model),
			zap.String("stop_reason", resp.StopReason),
			zap.Int64("latency_ms", resp.LatencyMs),
		)
	}()

	return pr, nil
}

func usageTrailer(resp *CompletionResponse) string {
	if resp == nil || resp.TokensIn+resp.TokensOut == 0 {
		return "null"
	}
	b, err := json.Marshal(model.Usage{
		PromptTokens:     resp.TokensIn,
		CompletionTokens: resp.TokensOut,
		TotalTokens:      resp.TokensIn + resp.TokensOut,
	})
	if err != nil {
		return "null"
	}
	return string(b)
}

// completionRequest converts a transcript. System messages are joined
// into the request's system prompt.
func completionRequest(req *model.StreamRequest, maxTokens int) *CompletionRequest {
	out := &CompletionRequest{
		Model:     req.Model.Model,
		MaxTokens: maxTokens,
		Stream:    true,
	}
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += m.Content.String()
			continue
		}
		cm := ChatMessage{Role: string(m.Role), Content: m.Content.String()}
		for _, part := range m.Content.Parts {
			if part.Type == model.PartImageURL && part.ImageURL != nil {
				cm.Images = append(cm.Images, part.ImageURL.URL)
			}
		}
		out.Messages = append(out.Messages, cm)
	}
	return out
}
