package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"cantastorie/internal/domain/story"
	"cantastorie/internal/gen"
)

// SynthesizeIllustration generates an illustration for one paragraph. The
// user's inspiration image always rides along as a scene reference; the
// anchor image, when present, pins character and style continuity across
// paragraphs.
func (c *Client) SynthesizeIllustration(ctx context.Context, req gen.IllustrationRequest) (story.Image, error) {
	refBytes, err := base64.StdEncoding.DecodeString(req.Reference.Data)
	if err != nil {
		return story.Image{}, fmt.Errorf("%w: bad reference image: %v", gen.ErrGeneration, err)
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: refBytes, MIMEType: req.Reference.MIMEType}},
	}

	prompt := fmt.Sprintf(`Create an illustration for this story paragraph, matching the mood and setting of the attached reference image:

%s`, req.ParagraphText)

	if req.Anchor != nil {
		anchorBytes, err := base64.StdEncoding.DecodeString(req.Anchor.Data)
		if err != nil {
			return story.Image{}, fmt.Errorf("%w: bad anchor image: %v", gen.ErrGeneration, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: anchorBytes, MIMEType: req.Anchor.MIMEType}})
		prompt += "\n\nThe second attached image is a previous illustration of this story: keep the same characters, art style and palette."
	}

	parts = append(parts, &genai.Part{Text: prompt})
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := c.generate(ctx, c.imageModel, contents, config)
	if err != nil {
		return story.Image{}, err
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return story.Image{
					Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
					MIMEType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}
	return story.Image{}, fmt.Errorf("%w: no image data received", gen.ErrGeneration)
}
