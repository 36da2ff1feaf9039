// Package gen defines the contract with the external generation backend:
// every narrative, audio and illustration call the authoring session makes
// goes through the Backend interface.
package gen

import (
	"context"
	"fmt"

	"cantastorie/internal/domain/story"
)

// ErrGeneration reports any backend call failure: network, malformed
// response, safety rejection or empty result. Callers wrap it with the
// failing operation so the user sees "failed to continue" rather than a
// transport error.
var ErrGeneration = fmt.Errorf("gen: generation failed")

// OpeningRequest carries the inputs for the initial story generation.
type OpeningRequest struct {
	ImageData  string // base64 payload of the inspiration image
	MIMEType   string
	Genre      string
	Theme      string
	Characters string
	Location   string
	Hint       string
}

// IllustrationRequest carries the inputs for a paragraph illustration.
// Anchor is the first generated illustration, reused for style and
// character continuity; nil for the first call.
type IllustrationRequest struct {
	ParagraphText string
	Anchor        *story.Image
	Reference     story.Image
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role string // "user" or "model"
	Text string
}

// Backend is the generation service. Chunked-paragraph results come back as
// ordered sentence-scale fragments; whole-story results as ordered
// paragraphs of fragments. None of the calls are idempotent, so issuing
// them at most once per user action is the caller's responsibility.
type Backend interface {
	GenerateOpening(ctx context.Context, req OpeningRequest) ([]string, error)
	Continue(ctx context.Context, fullText, genre, hint string) ([]string, error)
	Conclude(ctx context.Context, fullText, genre, hint string) ([]string, error)

	// RegenerateChunk rewrites one sentence within its paragraph. An empty
	// hint asks for a more vivid rendition.
	RegenerateChunk(ctx context.Context, paragraphContext, chunk, hint string) (string, error)
	RegenerateParagraph(ctx context.Context, before, after, paragraph, hint string) ([]string, error)

	// Refine rewrites the whole story without changing its plot; the
	// paragraph count may change.
	Refine(ctx context.Context, fullText, genre string) ([][]string, error)

	SuggestTitles(ctx context.Context, fullText string) ([]string, error)
	SuggestPlotTwists(ctx context.Context, fullText, category, focus string) ([]string, error)
	ApplyPlotTwist(ctx context.Context, fullText, twist string) ([][]string, error)

	// SynthesizeSpeech narrates the full story, returning base64-encoded
	// raw 16-bit mono PCM.
	SynthesizeSpeech(ctx context.Context, fullText string) (string, error)

	SynthesizeIllustration(ctx context.Context, req IllustrationRequest) (story.Image, error)

	Chat(ctx context.Context, history []ChatMessage, message string) (string, error)
}
