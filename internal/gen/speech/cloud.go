package speech

import (
	"context"
	"encoding/base64"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"cantastorie/internal/gen"
)

type CloudConfig struct {
	Voice      string
	SampleRate int
}

// CloudSynthesizer narrates through Google Cloud Text-to-Speech, requesting
// LINEAR16 at the session sample rate so the payload matches what the
// codec and player expect.
type CloudSynthesizer struct {
	client     *texttospeech.Client
	voice      string
	sampleRate int
}

func newCloudSynthesizer(cfg CloudConfig) (*CloudSynthesizer, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	if cfg.Voice == "" {
		cfg.Voice = "en-US-Chirp3-HD-Charon"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}

	return &CloudSynthesizer{
		client:     client,
		voice:      cfg.Voice,
		sampleRate: cfg.SampleRate,
	}, nil
}

func (c *CloudSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: "en-US",
			Name:         c.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(c.sampleRate),
		},
	}

	resp, err := c.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: cloud speech synthesis: %v", gen.ErrGeneration, err)
	}

	// LINEAR16 responses arrive as a WAV container; the codec and player
	// work on raw PCM, so strip the 44-byte header.
	audio := resp.AudioContent
	if len(audio) > 44 && string(audio[0:4]) == "RIFF" {
		audio = audio[44:]
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio from cloud speech", gen.ErrGeneration)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

// Close releases the underlying API client.
func (c *CloudSynthesizer) Close() error {
	return c.client.Close()
}
