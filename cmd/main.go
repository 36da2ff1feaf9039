package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cantastorie/internal/cli/scheme/colours"
	"cantastorie/internal/config"
	"cantastorie/internal/story/studio"
)

func main() {

	config.SetDefaults()

	app := studio.NewStudio()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		app.Close()
		fmt.Println("\n" + colours.Warning.Sprint("👋 The story will wait for you! 🌙"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "cantastorie",
		Short: "🎭 An AI storyteller that grows tales from pictures",
		Long: `
┌─────────────────────────────────────┐
│  🎭 Welcome to Cantastorie! 🖼️      │
│  Show it a picture and it spins     │
│  a story, voice and all 🎙️✨        │
└─────────────────────────────────────┘

Cantastorie turns a single image into a three-act illustrated story you
can edit sentence by sentence, listen to, and export as a web page. 🌙
		`,
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	// Write command
	writeCmd := &cobra.Command{
		Use:   "write <image>",
		Short: "🖋️ Grow a story from a picture",
		Long:  "Generate a story opening from an image, then edit, narrate and export it interactively",
		Run:   app.Write,
	}

	// Genres command
	genresCmd := &cobra.Command{
		Use:   "genres",
		Short: "🎭 List supported genres",
		Long:  "Display the story genres the narrator knows how to tell",
		Run:   app.ShowGenres,
	}

	// Settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show narration settings",
		Long:  "Display the active voice, model and audio configuration",
		Run:   app.ConfigureSettings,
	}

	// Add flags
	writeCmd.Flags().StringP("genre", "g", "", "Story genre (Fantasy, Sci-Fi, Horror, Mystery, Romance)")

	rootCmd.AddCommand(writeCmd, genresCmd, settingsCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// Configuration management with Viper
func init() {
	viper.SetConfigName("cantastorie")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.cantastorie")
	viper.AddConfigPath(".")

	viper.ReadInConfig()
}
