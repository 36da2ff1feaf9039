package gen

import (
	"context"
	"encoding/base64"
	"fmt"

	"cantastorie/internal/domain/story"
)

// MockBackend - placeholder implementation for tests and offline demos.
// Results are deterministic and instant.
type MockBackend struct{}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) GenerateOpening(ctx context.Context, req OpeningRequest) ([]string, error) {
	return []string{
		fmt.Sprintf("A %s tale begins where the image leaves off.", req.Genre),
		"Something stirs at the edge of the frame.",
	}, nil
}

func (m *MockBackend) Continue(ctx context.Context, fullText, genre, hint string) ([]string, error) {
	return []string{"The plot thickens.", "Nothing will be the same again."}, nil
}

func (m *MockBackend) Conclude(ctx context.Context, fullText, genre, hint string) ([]string, error) {
	return []string{"And so it ended,", "quietly, as these things do."}, nil
}

func (m *MockBackend) RegenerateChunk(ctx context.Context, paragraphContext, chunk, hint string) (string, error) {
	return "A more vivid " + chunk, nil
}

func (m *MockBackend) RegenerateParagraph(ctx context.Context, before, after, paragraph, hint string) ([]string, error) {
	return []string{"A rewritten beat.", "Sharper than before."}, nil
}

func (m *MockBackend) Refine(ctx context.Context, fullText, genre string) ([][]string, error) {
	return [][]string{
		{"A polished opening."},
		{"A polished middle."},
		{"A polished ending."},
	}, nil
}

func (m *MockBackend) SuggestTitles(ctx context.Context, fullText string) ([]string, error) {
	return []string{"The Untold Frame", "Edges of the Image", "What the Picture Kept"}, nil
}

func (m *MockBackend) SuggestPlotTwists(ctx context.Context, fullText, category, focus string) ([]string, error) {
	return []string{"The narrator was the villain all along.", "The image was a memory, not a place."}, nil
}

func (m *MockBackend) ApplyPlotTwist(ctx context.Context, fullText, twist string) ([][]string, error) {
	return [][]string{
		{"Everything you read was a lie."},
		{"The twist rewrites the middle."},
		{"The ending lands differently now."},
	}, nil
}

func (m *MockBackend) SynthesizeSpeech(ctx context.Context, fullText string) (string, error) {
	// One second of 24 kHz mono silence.
	return base64.StdEncoding.EncodeToString(make([]byte, 24000*2)), nil
}

func (m *MockBackend) SynthesizeIllustration(ctx context.Context, req IllustrationRequest) (story.Image, error) {
	return story.Image{Data: base64.StdEncoding.EncodeToString([]byte("mock-image")), MIMEType: "image/png"}, nil
}

func (m *MockBackend) Chat(ctx context.Context, history []ChatMessage, message string) (string, error) {
	return "I can help with that story.", nil
}
