// Package provider is the generation-engine boundary of the build pipeline.
//
// Providers wrap Eino chat models (Anthropic Claude, OpenAI, Volcengine ARK)
// behind one streaming call:
//
//	stream, err := registry.CreateCompletion(ctx, &provider.CompletionRequest{
//	    Model:     "anthropic/claude-opus-4-6",
//	    Messages:  messages,
//	    Tools:     tools,
//	    MaxTokens: 16384,
//	})
//
// The returned CompletionStream yields schema.Message chunks: text in
// Content, tool call fragments in ToolCalls (keyed by Index), and the finish
// reason in ResponseMeta. io.EOF ends the stream; any other error is a run
// failure.
//
// A provider builds one chat model per model ID on first use, so a single
// provider serves both the build model and the image model.
package provider
