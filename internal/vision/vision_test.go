package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamStanton/vibe-build/internal/provider"
)

type fakeCompleter struct {
	chunks []*schema.Message
	err    error
	req    *provider.CompletionRequest
}

func (f *fakeCompleter) CreateCompletion(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return provider.NewCompletionStream(schema.StreamReaderFromArray(f.chunks)), nil
}

func TestGenerate(t *testing.T) {
	fc := &fakeCompleter{chunks: []*schema.Message{
		schema.AssistantMessage("  A small ", nil),
		schema.AssistantMessage("oak cabin.\n", nil),
	}}
	g := NewGenerator(fc, "anthropic/claude-sonnet-4-5", 0)

	img := []byte{0x89, 'P', 'N', 'G'}
	got, err := g.Generate(context.Background(), img, "image/JPG", " two windows ")
	require.NoError(t, err)
	assert.Equal(t, "A small oak cabin.", got)

	require.NotNil(t, fc.req)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", fc.req.Model)
	assert.Equal(t, DefaultMaxTokens, fc.req.MaxTokens)
	require.Len(t, fc.req.Messages, 2)
	assert.Equal(t, schema.System, fc.req.Messages[0].Role)

	parts := fc.req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "Player notes: two windows")
	require.NotNil(t, parts[1].ImageURL)
	assert.Equal(t, "image/jpeg", parts[1].ImageURL.MIMEType)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(img), parts[1].ImageURL.URL)
}

func TestGenerate_NoNotes(t *testing.T) {
	fc := &fakeCompleter{chunks: []*schema.Message{schema.AssistantMessage("tower", nil)}}
	_, err := NewGenerator(fc, "", 100).Generate(context.Background(), []byte("x"), "", "")
	require.NoError(t, err)
	assert.Contains(t, fc.req.Messages[1].MultiContent[0].Text, "Player notes: none")
	assert.Equal(t, 100, fc.req.MaxTokens)
}

func TestGenerate_Empty(t *testing.T) {
	fc := &fakeCompleter{chunks: []*schema.Message{{
		Role:         schema.Assistant,
		Content:      "  ",
		ResponseMeta: &schema.ResponseMeta{FinishReason: "max_tokens"},
	}}}
	_, err := NewGenerator(fc, "", 0).Generate(context.Background(), []byte("x"), "image/png", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.ErrorContains(t, err, "finish_reason=max_tokens")
}

func TestGenerate_ModelError(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("rate limited")}
	_, err := NewGenerator(fc, "", 0).Generate(context.Background(), []byte("x"), "image/png", "")
	assert.ErrorContains(t, err, "image model failed: rate limited")
}

func TestMediaType(t *testing.T) {
	tests := map[string]string{
		"image/png":                "image/png",
		"IMAGE/JPEG":               "image/jpeg",
		"image/jpg":                "image/jpeg",
		"image/webp":               "image/webp",
		"image/gif; charset=utf-8": "image/gif",
		"image/bmp":                "image/png",
		"":                         "image/png",
	}
	for in, want := range tests {
		assert.Equal(t, want, MediaType(in), in)
	}
}
