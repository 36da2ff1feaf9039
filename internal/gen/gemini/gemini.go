// Package gemini implements the generation backend on the Google Gen AI
// SDK. Narrative calls ask for JSON with a fixed response schema so chunk
// boundaries survive the trip; audio and illustration calls use the
// dedicated response modalities.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"cantastorie/internal/gen"
)

type Config struct {
	APIKey     string
	Model      string
	TTSModel   string
	ImageModel string
	Voice      string
}

// Client talks to the Gemini API. Safe for concurrent use; every call is
// an independent request.
type Client struct {
	client     *genai.Client
	model      string
	ttsModel   string
	imageModel string
	voice      string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.0-flash-preview-image-generation"
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &Client{
		client:     client,
		model:      cfg.Model,
		ttsModel:   cfg.TTSModel,
		imageModel: cfg.ImageModel,
		voice:      cfg.Voice,
	}, nil
}

// paragraphSchema shapes a single chunked paragraph response.
var paragraphSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"paragraph": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A single sentence or coherent fragment of the paragraph.",
			},
		},
	},
	Required: []string{"paragraph"},
}

// storySchema shapes a whole-story rewrite response.
var storySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"paragraphs": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
	},
	Required: []string{"paragraphs"},
}

func stringListSchema(key string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			key: {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{key},
	}
}

func jsonConfig(schema *genai.Schema) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
}

func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gen.ErrGeneration, err)
	}
	return resp, nil
}

func (c *Client) generateText(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := c.generate(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", gen.ErrGeneration)
	}
	return text, nil
}

func (c *Client) generateParagraph(ctx context.Context, prompt string) ([]string, error) {
	text, err := c.generateText(ctx, prompt, jsonConfig(paragraphSchema))
	if err != nil {
		return nil, err
	}
	var out struct {
		Paragraph []string `json:"paragraph"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed paragraph response: %v", gen.ErrGeneration, err)
	}
	if len(out.Paragraph) == 0 {
		return nil, fmt.Errorf("%w: empty paragraph", gen.ErrGeneration)
	}
	return out.Paragraph, nil
}

func (c *Client) generateStory(ctx context.Context, prompt string) ([][]string, error) {
	text, err := c.generateText(ctx, prompt, jsonConfig(storySchema))
	if err != nil {
		return nil, err
	}
	var out struct {
		Paragraphs [][]string `json:"paragraphs"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed story response: %v", gen.ErrGeneration, err)
	}
	if len(out.Paragraphs) == 0 {
		return nil, fmt.Errorf("%w: empty story", gen.ErrGeneration)
	}
	return out.Paragraphs, nil
}

func (c *Client) GenerateOpening(ctx context.Context, req gen.OpeningRequest) ([]string, error) {
	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		return nil, fmt.Errorf("%w: bad inspiration image: %v", gen.ErrGeneration, err)
	}

	instructions := gen.InstructionsFor(req.Genre)
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a master storyteller. Use this image as inspiration to write a short, powerful story opening (at most two paragraphs) in the **%s** genre.
%s
Do not merely describe the scene; create an event or action that sets the plot in motion. The prose must be impeccable. Split the paragraph into an array of coherent sentences or sentence fragments.`,
		req.Genre, instructions.Opening)

	if strings.TrimSpace(req.Theme) != "" {
		fmt.Fprintf(&sb, "\n\nWeave in this theme: %q.", req.Theme)
	}
	if strings.TrimSpace(req.Characters) != "" {
		fmt.Fprintf(&sb, "\n\nFeature these characters: %q.", req.Characters)
	}
	if strings.TrimSpace(req.Location) != "" {
		fmt.Fprintf(&sb, "\n\nSet the story here: %q.", req.Location)
	}
	if strings.TrimSpace(req.Hint) != "" {
		fmt.Fprintf(&sb, "\n\nConsider this suggestion: %q.", req.Hint)
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: imageBytes, MIMEType: req.MIMEType}},
			{Text: sb.String()},
		},
	}}

	resp, err := c.generate(ctx, c.model, contents, jsonConfig(paragraphSchema))
	if err != nil {
		return nil, err
	}
	var out struct {
		Paragraph []string `json:"paragraph"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed paragraph response: %v", gen.ErrGeneration, err)
	}
	if len(out.Paragraph) == 0 {
		return nil, fmt.Errorf("%w: empty paragraph", gen.ErrGeneration)
	}
	return out.Paragraph, nil
}

func (c *Client) Continue(ctx context.Context, fullText, genre, hint string) ([]string, error) {
	instructions := gen.InstructionsFor(genre)
	prompt := fmt.Sprintf(`You are a master storyteller. Continue the following **%s** story, which has already had its inciting incident.
%s
**Do not restate the initial setup.** Focus on the direct consequences of what happened and move the plot forward meaningfully.
Develop the chosen direction in one compelling paragraph. Split the paragraph into an array of coherent sentences or sentence fragments.`,
		genre, instructions.Continuation)
	if strings.TrimSpace(hint) != "" {
		prompt += fmt.Sprintf("\n\nConsider this suggestion: %q.", hint)
	}
	prompt += "\n\nSTORY SO FAR:\n" + fullText
	return c.generateParagraph(ctx, prompt)
}

func (c *Client) Conclude(ctx context.Context, fullText, genre, hint string) ([]string, error) {
	instructions := gen.InstructionsFor(genre)
	prompt := fmt.Sprintf(`You are a master storyteller. Conclude the following **%s** story, which has reached its point of highest tension. Write the **final paragraph**.
%s
**Do not introduce new mysteries.** Provide a satisfying, impactful resolution that ties every narrative thread.
Split the paragraph into an array of coherent sentences or sentence fragments.`,
		genre, instructions.Conclusion)
	if strings.TrimSpace(hint) != "" {
		prompt += fmt.Sprintf("\n\nConsider this suggestion: %q.", hint)
	}
	prompt += "\n\nSTORY SO FAR:\n" + fullText
	return c.generateParagraph(ctx, prompt)
}

func (c *Client) RegenerateChunk(ctx context.Context, paragraphContext, chunk, hint string) (string, error) {
	prompt := fmt.Sprintf(`You are a literary editor. Rewrite a single sentence within a paragraph to improve it while staying coherent with the surrounding text.

This is the full paragraph:
%q

This is the specific sentence to rewrite:
%q
`, paragraphContext, chunk)

	if strings.TrimSpace(hint) != "" {
		prompt += fmt.Sprintf("\nFollow this suggestion for the rewrite: %q", hint)
	} else {
		prompt += "\nRewrite the sentence to make it more vivid, impactful or evocative."
	}
	prompt += "\n\n**Return only the single rewritten sentence**, as plain text, with no quotes, explanations or any other text."

	text, err := c.generateText(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) RegenerateParagraph(ctx context.Context, before, after, paragraph, hint string) ([]string, error) {
	if before == "" {
		before = "(no preceding text)"
	}
	if after == "" {
		after = "(no following text)"
	}
	prompt := fmt.Sprintf(`You are a literary editor. Rewrite an entire story paragraph to improve it while staying coherent with the text before and after it.

This is the text that comes BEFORE the paragraph:
---
%s
---

This is the text that comes AFTER:
---
%s
---

This is the specific paragraph to rewrite:
%q
`, before, after, paragraph)

	if strings.TrimSpace(hint) != "" {
		prompt += fmt.Sprintf("\nFollow this suggestion for the rewrite: %q", hint)
	} else {
		prompt += "\nRewrite the paragraph to make it more vivid, impactful or evocative, connecting smoothly with the rest of the narrative."
	}
	prompt += "\n\n**Return only the rewritten paragraph** as an array of sentences or fragments."

	return c.generateParagraph(ctx, prompt)
}

func (c *Client) Refine(ctx context.Context, fullText, genre string) ([][]string, error) {
	prompt := fmt.Sprintf(`You are a literary editor. Polish the following **%s** story: improve word choice, rhythm and imagery without changing the plot, the characters or what happens in each paragraph.
Return the full story as an array of paragraphs, each an array of sentences or fragments.

STORY:
%s`, genre, fullText)
	return c.generateStory(ctx, prompt)
}

func (c *Client) SuggestTitles(ctx context.Context, fullText string) ([]string, error) {
	prompt := "Given the following story text, suggest 5 captivating titles. They must be creative and reflect the story's tone and content.\n\nTEXT:\n" + fullText

	text, err := c.generateText(ctx, prompt, jsonConfig(stringListSchema("titles")))
	if err != nil {
		return nil, err
	}
	var out struct {
		Titles []string `json:"titles"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed titles response: %v", gen.ErrGeneration, err)
	}
	if len(out.Titles) == 0 {
		return nil, fmt.Errorf("%w: no titles returned", gen.ErrGeneration)
	}
	return out.Titles, nil
}

func (c *Client) SuggestPlotTwists(ctx context.Context, fullText, category, focus string) ([]string, error) {
	prompt := fmt.Sprintf("Given the following story, propose 3 plot twists in the %q category. Each twist must be a one-sentence description that could plausibly redirect this story.", category)
	if strings.TrimSpace(focus) != "" {
		prompt += fmt.Sprintf(" Focus the twists on: %q.", focus)
	}
	prompt += "\n\nTEXT:\n" + fullText

	text, err := c.generateText(ctx, prompt, jsonConfig(stringListSchema("twists")))
	if err != nil {
		return nil, err
	}
	var out struct {
		Twists []string `json:"twists"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed twists response: %v", gen.ErrGeneration, err)
	}
	if len(out.Twists) == 0 {
		return nil, fmt.Errorf("%w: no twists returned", gen.ErrGeneration)
	}
	return out.Twists, nil
}

func (c *Client) ApplyPlotTwist(ctx context.Context, fullText, twist string) ([][]string, error) {
	prompt := fmt.Sprintf(`You are a master storyteller. Rewrite the following story so that it incorporates this plot twist: %q.
Keep the overall voice, but change whatever the twist requires. Return the full rewritten story as an array of paragraphs, each an array of sentences or fragments.

STORY:
%s`, twist, fullText)
	return c.generateStory(ctx, prompt)
}

func (c *Client) Chat(ctx context.Context, history []gen.ChatMessage, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Text}}})
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: message}}})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: "You are a helpful writing assistant for an interactive story-authoring tool."}},
		},
	}
	resp, err := c.generate(ctx, c.model, contents, config)
	if err != nil {
		return "", err
	}
	if resp.Text() == "" {
		return "", fmt.Errorf("%w: empty chat response", gen.ErrGeneration)
	}
	return resp.Text(), nil
}
