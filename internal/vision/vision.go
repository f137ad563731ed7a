package vision

import (
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/provider"
)

// DefaultMaxTokens bounds the generated build request.
const DefaultMaxTokens = 2200

//go:embed prompt.txt
var systemPrompt string

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("image model returned an empty response")

// Generator turns reference images into build requests.
type Generator struct {
	completer provider.Completer
	model     string
	maxTokens int
}

// NewGenerator creates a generator that uses model ("provider/model").
func NewGenerator(completer provider.Completer, model string, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Generator{completer: completer, model: model, maxTokens: maxTokens}
}

// Generate describes image as a build request the planner can act on.
// notes are the player's own hints and may be empty.
func (g *Generator) Generate(ctx context.Context, image []byte, mimeType, notes string) (string, error) {
	notesLine := "Player notes: none"
	if notes = strings.TrimSpace(notes); notes != "" {
		notesLine = "Player notes: " + notes
	}
	userText := "Analyze this Minecraft build reference image and convert it into a planner-ready build request.\n" + notesLine

	mediaType := MediaType(mimeType)
	dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)

	stream, err := g.completer.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: g.model,
		Messages: []*schema.Message{
			schema.SystemMessage(strings.TrimSpace(systemPrompt)),
			{
				Role: schema.User,
				MultiContent: []schema.ChatMessagePart{
					{Type: schema.ChatMessagePartTypeText, Text: userText},
					{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{
						URL:      dataURL,
						MIMEType: mediaType,
					}},
				},
			},
		},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("image model failed: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	finishReason := "unknown"
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("image model failed: %w", err)
		}
		if msg == nil {
			continue
		}
		text.WriteString(msg.Content)
		if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != "" {
			finishReason = msg.ResponseMeta.FinishReason
		}
	}

	generated := strings.TrimSpace(text.String())
	if generated == "" {
		return "", fmt.Errorf("%w (finish_reason=%s)", ErrEmptyResponse, finishReason)
	}
	logging.Info().Str("mediaType", mediaType).Int("bytes", len(image)).Str("prompt", generated).Msg("Generated prompt from image")
	return generated, nil
}

// MediaType normalizes an upload's content type to one the image models
// accept. Unknown types fall back to image/png.
func MediaType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "image/jpg":
		return "image/jpeg"
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return mt
	default:
		return "image/png"
	}
}
