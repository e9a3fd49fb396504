package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

type fakeClient struct {
	tokens []string
	resp   *CompletionResponse
	err    error
	got    *CompletionRequest
	aborts chan error
}

func (f *fakeClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return f.resp, f.err
}

func (f *fakeClient) CompleteStream(ctx context.Context, req *CompletionRequest, cb StreamCallback) (*CompletionResponse, error) {
	f.got = req
	for i, tok := range f.tokens {
		if err := cb(tok, i); err != nil {
			if f.aborts != nil {
				f.aborts <- err
			}
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeClient) Name() string     { return "fake" }
func (f *fakeClient) Models() []string { return []string{"fake-1"} }

func request() *model.StreamRequest {
	return &model.StreamRequest{
		Model: model.ModelRef{Model: "fake-1"},
		Messages: []model.Message{
			model.NewMessage(model.RoleSystem, "be brief"),
			model.NewMessage(model.RoleUser, "hi"),
			{Role: model.RoleUser, Content: model.PartsContent(
				model.TextPart("Uploaded image: a.png"),
				model.ImagePart("data:image/png;base64,AA"),
			)},
		},
	}
}

func TestProducerFramesTokensAndUsage(t *testing.T) {
	client := &fakeClient{
		tokens: []string{"Hel", "lo"},
		resp:   &CompletionResponse{Model: "fake-1", TokensIn: 3, TokensOut: 2},
	}
	p := NewProducer(client, 256, logger.NewNop())

	body, err := p.Stream(context.Background(), request())
	require.NoError(t, err)
	defer body.Close()

	out, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, `Hello###STOP###{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}`, string(out))

	require.Equal(t, "be brief", client.got.System)
	require.Equal(t, 256, client.got.MaxTokens)
	require.Len(t, client.got.Messages, 2)
	require.Equal(t, "Uploaded image: a.png", client.got.Messages[1].Content)
	require.Equal(t, []string{"data:image/png;base64,AA"}, client.got.Messages[1].Images)
}

func TestProducerNullUsage(t *testing.T) {
	client := &fakeClient{tokens: []string{"ok"}, resp: &CompletionResponse{}}
	body, err := NewProducer(client, 0, nil).Stream(context.Background(), request())
	require.NoError(t, err)

	out, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "ok###STOP###null", string(out))
}

func TestProducerPropagatesErrors(t *testing.T) {
	boom := errors.New("rate limited")
	client := &fakeClient{tokens: []string{"par"}, err: boom}
	body, err := NewProducer(client, 0, nil).Stream(context.Background(), request())
	require.NoError(t, err)

	out, err := io.ReadAll(body)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "par", string(out))
}

func TestProducerCloseAbortsCompletion(t *testing.T) {
	client := &fakeClient{
		tokens: []string{"a", "b", "c"},
		resp:   &CompletionResponse{},
		aborts: make(chan error, 1),
	}
	body, err := NewProducer(client, 0, nil).Stream(context.Background(), request())
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = body.Read(buf)
	require.NoError(t, err)
	require.NoError(t, body.Close())

	require.ErrorIs(t, <-client.aborts, io.ErrClosedPipe)
}

func TestSplitDataURL(t *testing.T) {
	mt, data, ok := splitDataURL("data:image/jpeg;base64,QUJD")
	require.True(t, ok)
	require.Equal(t, "image/jpeg", mt)
	require.Equal(t, "QUJD", data)

	_, _, ok = splitDataURL("https://example.com/a.png")
	require.False(t, ok)
}
