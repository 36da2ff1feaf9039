// Package speech selects the narration synthesizer. The Gemini TTS model
// is the default; Google Cloud Text-to-Speech is used when service-account
// credentials are available and the config asks for auto selection.
package speech

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"cantastorie/internal/gen"
)

// Synthesizer turns story text into base64-encoded raw 16-bit mono PCM at
// the configured sample rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type EngineType string

const (
	EngineTypeGemini      EngineType = "gemini"
	EngineTypeGoogleCloud EngineType = "googlecloud"
	EngineTypeAuto        EngineType = "auto"
)

func (e EngineType) String() string {
	return string(e)
}

// New creates a synthesizer of the requested type. The backend carries the
// Gemini implementation; the Google Cloud engine is built on demand.
func New(engine EngineType, backend gen.Backend) (Synthesizer, error) {
	if engine == EngineTypeAuto {
		engine = bestEngine()
	}

	switch engine {
	case EngineTypeGemini:
		return backendSynthesizer{backend: backend}, nil

	case EngineTypeGoogleCloud:
		return newCloudSynthesizer(CloudConfig{
			Voice:      viper.GetString("speech.cloud_voice"),
			SampleRate: viper.GetInt("audio.sample_rate"),
		})

	default:
		return nil, fmt.Errorf("unsupported speech engine type: %s", engine)
	}
}

func bestEngine() EngineType {
	if hasGoogleCredentials() {
		return EngineTypeGoogleCloud
	}
	return EngineTypeGemini
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}

// backendSynthesizer narrates through the generation backend's TTS model.
type backendSynthesizer struct {
	backend gen.Backend
}

func (s backendSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	return s.backend.SynthesizeSpeech(ctx, text)
}
