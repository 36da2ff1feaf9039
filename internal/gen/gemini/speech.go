package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"cantastorie/internal/gen"
)

var scriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"script": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"speaker": {Type: genai.TypeString, Description: "NARRATOR, MALE, FEMALE_1 or FEMALE_2"},
					"text":    {Type: genai.TypeString},
				},
			},
		},
	},
	Required: []string{"script"},
}

// TagNarration splits the story into speaker-attributed runs for
// multi-voice narration. Tagging is best-effort: any failure falls back to
// a single narrator reading the whole text.
func (c *Client) TagNarration(ctx context.Context, fullText string) []gen.ScriptLine {
	prompt := `Analyze the following story text. Split it into an array of objects, each with a "speaker" and a "text" key.
- Use "NARRATOR" for narrative passages.
- Use "MALE" for dialogue spoken by a male character.
- Use "FEMALE_1" for the first female character who speaks and "FEMALE_2" for the second, if any. With a single female character, use "FEMALE_1".
Be precise in attributing dialogue, relying on markers like "he said", "she replied", names or context. Group consecutive runs of the same speaker into one object.

TEXT:
---
` + fullText + `
---`

	text, err := c.generateText(ctx, prompt, jsonConfig(scriptSchema))
	if err != nil {
		logrus.WithError(err).Warn("narration tagging failed, falling back to single voice")
		return []gen.ScriptLine{{Speaker: gen.SpeakerNarrator, Text: fullText}}
	}

	var out struct {
		Script []struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		} `json:"script"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil || len(out.Script) == 0 {
		logrus.Warn("narration tagging returned an unexpected format, falling back to single voice")
		return []gen.ScriptLine{{Speaker: gen.SpeakerNarrator, Text: fullText}}
	}

	script := make([]gen.ScriptLine, 0, len(out.Script))
	for _, line := range out.Script {
		speaker := gen.Speaker(line.Speaker)
		// Older taggings used a bare FEMALE label.
		if speaker == "FEMALE" {
			speaker = gen.SpeakerFemale1
		}
		script = append(script, gen.ScriptLine{Speaker: speaker, Text: line.Text})
	}
	return script
}

// AnalyzeTone asks for a short reading instruction for the single-voice
// narrator. Empty on failure so the narration still happens.
func (c *Client) AnalyzeTone(ctx context.Context, fullText string) string {
	prompt := `Analyze the tone, atmosphere and emotional content of the following story text. Based on your analysis, return one short voice direction for an AI narrator on how to read it. Examples: 'in a dark, suspenseful tone', 'with a wondering, dreamy voice', 'quickly and anxiously', 'with quiet melancholy'.

Return ONLY the direction, as plain text, with no quotes or explanation.

STORY TEXT:
---
` + fullText + `
---`

	text, err := c.generateText(ctx, prompt, nil)
	if err != nil {
		logrus.WithError(err).Warn("tone analysis failed")
		return ""
	}
	return strings.TrimSpace(text)
}

// SynthesizeSpeech narrates the story, returning base64 raw 16-bit mono
// PCM. Two-speaker scripts use the multi-speaker voice config; everything
// else reads in a single voice steered by the tone analysis.
func (c *Client) SynthesizeSpeech(ctx context.Context, fullText string) (string, error) {
	script := gen.MergeSpeakers(c.TagNarration(ctx, fullText))
	speakers := gen.Speakers(script)

	var contents []*genai.Content
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
	}

	if len(speakers) == 2 {
		voices := gen.VoiceFor(speakers)
		voiceConfigs := make([]*genai.SpeakerVoiceConfig, 0, len(speakers))
		for _, s := range speakers {
			voiceConfigs = append(voiceConfigs, &genai.SpeakerVoiceConfig{
				Speaker: string(s),
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voices[s]},
				},
			})
		}
		config.SpeechConfig = &genai.SpeechConfig{
			MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{
				SpeakerVoiceConfigs: voiceConfigs,
			},
		}

		lines := make([]string, len(script))
		for i, line := range script {
			lines[i] = fmt.Sprintf("%s: %s", line.Speaker, line.Text)
		}
		contents = genai.Text(strings.Join(lines, "\n"))
	} else {
		config.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
			},
		}

		prompt := fullText
		if tone := c.AnalyzeTone(ctx, fullText); tone != "" {
			prompt = fmt.Sprintf("Read the following text %s: %s", tone, fullText)
		}
		contents = genai.Text(prompt)
	}

	resp, err := c.generate(ctx, c.ttsModel, contents, config)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
			}
		}
	}
	return "", fmt.Errorf("%w: no audio data received", gen.ErrGeneration)
}
