package config

import "github.com/spf13/viper"

func SetDefaults() {
	viper.SetDefault("gen.model", "gemini-2.5-flash")
	viper.SetDefault("gen.tts_model", "gemini-2.5-flash-preview-tts")
	viper.SetDefault("gen.image_model", "gemini-2.0-flash-preview-image-generation")

	viper.SetDefault("speech.engine", "auto") // Auto-select best synthesizer
	viper.SetDefault("speech.voice", "Kore")

	viper.SetDefault("audio.sample_rate", 24000)
	viper.SetDefault("audio.channels", 1)

	viper.SetDefault("story.genre", "Fantasy")
	viper.SetDefault("export.path", "story.html")
}
