// Package studio is the interactive authoring application: it wires the
// generation backend, the narration synthesizer and the playback engine
// into a Session and drives them from a terminal loop.
package studio

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cantastorie/internal/audio/pcm"
	"cantastorie/internal/audio/playback"
	"cantastorie/internal/cli/scheme/colours"
	"cantastorie/internal/domain/story"
	"cantastorie/internal/export"
	"cantastorie/internal/gen"
	"cantastorie/internal/gen/gemini"
	"cantastorie/internal/gen/speech"
	"cantastorie/internal/story/session"
)

// highlightLinger is how long regenerated sentences stay marked on screen
// before the sweep clears them.
const highlightLinger = 4 * time.Second

// Studio main application structure
type Studio struct {
	Session *session.Session

	ctx    context.Context
	Cancel context.CancelFunc
}

func NewStudio() *Studio {
	ctx, cancel := context.WithCancel(context.Background())

	backend := newBackend(ctx)

	synth, err := speech.New(speech.EngineType(viper.GetString("speech.engine")), backend)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create speech synthesizer")
	}

	player := playback.NewPlayer(playback.NewSpeakerSink(),
		playback.WithFormat(viper.GetInt("audio.sample_rate"), viper.GetInt("audio.channels")))

	return &Studio{
		Session: session.New(backend, synth, player, viper.GetString("story.genre")),
		ctx:     ctx,
		Cancel:  cancel,
	}
}

// newBackend picks the generation backend: Gemini when an API key is
// configured, the offline placeholder otherwise.
func newBackend(ctx context.Context) gen.Backend {
	apiKey := viper.GetString("gen.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		colours.Warning.Println("⚠️ No Gemini API key found, using the offline demo backend")
		colours.Info.Println("💡 Set GEMINI_API_KEY to generate real stories")
		return gen.NewMockBackend()
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:     apiKey,
		Model:      viper.GetString("gen.model"),
		TTSModel:   viper.GetString("gen.tts_model"),
		ImageModel: viper.GetString("gen.image_model"),
		Voice:      viper.GetString("speech.voice"),
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create gemini client")
	}
	return client
}

func (st *Studio) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🎭 Welcome to Cantastorie! 🎭")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • cantastorie write <image>  - Grow a story from a picture")
	fmt.Println("  • cantastorie genres         - List the supported genres")
	fmt.Println("  • cantastorie settings       - Show voice and model settings")
	fmt.Println()
	colours.Prompt.Println("✨ Every picture hides a story. Let's find yours! ✨")
}

// Write runs the authoring loop: generate an opening from the picture,
// then take editing commands until the user exports or quits.
func (st *Studio) Write(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		colours.Error.Println("❌ I need a picture to start from: cantastorie write <image>")
		return
	}

	img, err := loadImage(args[0])
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.Session.SetSourceImage(img)

	if genre, _ := cmd.Flags().GetString("genre"); genre != "" {
		st.Session.SetGenre(genre)
	}

	params := st.promptOpening()
	colours.Info.Println("🖋️ Writing the opening...")
	if err := st.Session.Generate(st.ctx, params); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.displayStory()

	st.commandLoop()
}

func (st *Studio) promptOpening() session.OpeningParams {
	reader := bufio.NewReader(os.Stdin)

	colours.Prompt.Print("🎨 Theme (optional): ")
	theme, _ := reader.ReadString('\n')
	colours.Prompt.Print("🧑 Characters (optional): ")
	characters, _ := reader.ReadString('\n')
	colours.Prompt.Print("🗺️ Location (optional): ")
	location, _ := reader.ReadString('\n')

	return session.OpeningParams{
		Theme:      strings.TrimSpace(theme),
		Characters: strings.TrimSpace(characters),
		Location:   strings.TrimSpace(location),
	}
}

func (st *Studio) commandLoop() {
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-st.ctx.Done():
			return
		default:
		}

		fmt.Println()
		colours.Prompt.Print("📜 Command (h for help): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "h", "help":
			st.showHelp()
		case "s", "show":
			st.displayStory()
		case "n", "next":
			st.advance(arg)
		case "sentence":
			st.regenerateChunk(arg)
		case "paragraph":
			st.regenerateParagraph(arg)
		case "refine":
			st.refine()
		case "twist":
			st.plotTwist(arg)
		case "titles":
			st.suggestTitles()
		case "illustrate":
			st.illustrate(arg)
		case "read":
			st.play()
		case "pause":
			st.Session.PausePlayback()
			colours.Warning.Println("⏸️ Paused")
		case "resume":
			if err := st.Session.ResumePlayback(st.ctx); err != nil {
				colours.Error.Printf("❌ %v\n", err)
			} else {
				colours.Success.Println("▶️ Resumed")
			}
		case "stop":
			st.Session.StopPlayback()
			colours.Warning.Println("⏹️ Stopped")
		case "chat":
			st.chat(reader)
		case "export":
			st.export(arg)
		case "q", "quit":
			colours.Warning.Println("👋 The story rests here. Until next time! 🌙")
			return
		case "":
			continue
		default:
			colours.Info.Println("ℹ️ Unknown command, 'h' shows the list")
		}
	}
}

func (st *Studio) showHelp() {
	colours.Info.Println("📚 Authoring commands:")
	fmt.Println("  • next [hint]          - Continue (then conclude) the story")
	fmt.Println("  • sentence P.C [hint]  - Rewrite sentence C of paragraph P")
	fmt.Println("  • paragraph P [hint]   - Rewrite paragraph P in context")
	fmt.Println("  • refine               - Polish the whole story")
	fmt.Println("  • twist [category]     - Suggest and apply a plot twist")
	fmt.Println("  • titles               - Suggest titles")
	fmt.Println("  • illustrate P         - Illustrate paragraph P")
	fmt.Println("  • read / pause / resume / stop")
	fmt.Println("  • chat                 - Talk to the writing assistant")
	fmt.Println("  • show, export [path], quit")
}

func (st *Studio) advance(hint string) {
	colours.Info.Println("🖋️ Writing the next paragraph...")
	if err := st.Session.Advance(st.ctx, hint); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.displayStory()
	if st.Session.Story().Stage() == story.StageConcluded {
		colours.Success.Println("🏁 The story has reached its ending!")
		st.printTitles(st.Session.Titles())
	}
}

// regenerateChunk parses a "P.C" reference, e.g. "2.1" for the second
// sentence of paragraph 2. References are 1-based on screen.
func (st *Studio) regenerateChunk(arg string) {
	ref, hint, _ := strings.Cut(arg, " ")
	pStr, cStr, ok := strings.Cut(ref, ".")
	p, perr := strconv.Atoi(pStr)
	c, cerr := strconv.Atoi(cStr)
	if !ok || perr != nil || cerr != nil {
		colours.Error.Println("❌ Use: sentence <paragraph>.<sentence> [hint]")
		return
	}

	colours.Info.Println("🖋️ Rewriting the sentence...")
	if err := st.Session.RegenerateChunk(st.ctx, p-1, c-1, strings.TrimSpace(hint)); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.displayStory()
}

func (st *Studio) regenerateParagraph(arg string) {
	ref, hint, _ := strings.Cut(arg, " ")
	p, err := strconv.Atoi(ref)
	if err != nil {
		colours.Error.Println("❌ Use: paragraph <number> [hint]")
		return
	}

	colours.Info.Println("🖋️ Rewriting the paragraph...")
	if err := st.Session.RegenerateParagraph(st.ctx, p-1, strings.TrimSpace(hint)); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.displayStory()
}

func (st *Studio) refine() {
	colours.Info.Println("🪄 Polishing the whole story...")
	if err := st.Session.Refine(st.ctx); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Println("✨ Refined!")
	st.displayStory()
}

func (st *Studio) plotTwist(category string) {
	colours.Info.Println("🌀 Plotting twists...")
	twists, err := st.Session.SuggestPlotTwists(st.ctx, category, "")
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	if len(twists) == 0 {
		colours.Warning.Println("🔍 No twists came to mind.")
		return
	}

	fmt.Println()
	for i, twist := range twists {
		fmt.Printf("  %d. %s\n", i+1, twist)
	}
	colours.Prompt.Print("🌟 Pick a twist number (or Enter to keep the story as is): ")

	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(twists) {
		colours.Error.Println("❌ Invalid selection!")
		return
	}

	colours.Info.Println("🖋️ Weaving the twist in...")
	if err := st.Session.ApplyPlotTwist(st.ctx, twists[choice-1]); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.displayStory()
}

func (st *Studio) suggestTitles() {
	colours.Info.Println("🏷️ Thinking of titles...")
	titles, err := st.Session.SuggestTitles(st.ctx)
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	st.printTitles(titles)
}

func (st *Studio) printTitles(titles []string) {
	if len(titles) == 0 {
		return
	}
	colours.Info.Println("🏷️ Title ideas:")
	for i, title := range titles {
		fmt.Printf("  %d. ", i+1)
		colours.Title.Println(title)
	}
}

func (st *Studio) illustrate(arg string) {
	p, err := strconv.Atoi(arg)
	if err != nil {
		colours.Error.Println("❌ Use: illustrate <paragraph>")
		return
	}

	colours.Info.Println("🎨 Painting the scene...")
	if err := st.Session.Illustrate(st.ctx, p-1); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Printf("🖼️ Paragraph %d is illustrated (it will appear in the export)\n", p)
}

func (st *Studio) play() {
	colours.Info.Println("🎙️ Narrating... (first time takes a moment)")
	if err := st.Session.Play(st.ctx); err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}
	colours.Success.Println("🎵 Playing! Use 'pause', 'resume' or 'stop'")
}

func (st *Studio) chat(reader *bufio.Reader) {
	colours.Assistant.Println("💬 Writing assistant. Empty line to return.")
	var history []gen.ChatMessage
	for {
		colours.Prompt.Print("you> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		message := strings.TrimSpace(line)
		if message == "" {
			return
		}

		reply, err := st.Session.Chat(st.ctx, history, message)
		if err != nil {
			colours.Error.Printf("❌ %v\n", err)
			continue
		}
		colours.Assistant.Printf("assistant> %s\n", reply)
		history = append(history,
			gen.ChatMessage{Role: "user", Text: message},
			gen.ChatMessage{Role: "model", Text: reply},
		)
	}
}

// export renders the story to a self-contained HTML file. Narration is
// synthesized if it is not already cached.
func (st *Studio) export(path string) {
	if path == "" {
		path = viper.GetString("export.path")
	}

	colours.Info.Println("📦 Gathering narration and illustrations...")
	out, err := st.ExportHTML()
	if err != nil {
		colours.Error.Printf("❌ %v\n", err)
		return
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		colours.Error.Printf("❌ Failed to write %s: %v\n", path, err)
		return
	}
	colours.Success.Printf("✅ Story exported to %s 🎉\n", path)
}

// ExportHTML assembles the export document from the session state.
func (st *Studio) ExportHTML() ([]byte, error) {
	snapshot := st.Session.Story()
	cover := st.Session.SourceImage()
	if cover == nil {
		return nil, fmt.Errorf("no inspiration image to use as cover")
	}

	payload, err := st.Session.Audio(st.ctx)
	if err != nil {
		return nil, err
	}
	raw, err := pcm.DecodeBase64(payload)
	if err != nil {
		return nil, err
	}

	doc := export.Document{
		Title:    st.chooseTitle(),
		Genre:    st.Session.Genre(),
		Cover:    *cover,
		AudioWAV: pcm.EncodeWAV(raw, exportFormat()),
	}
	for i := range snapshot.Paragraphs {
		doc.Paragraphs = append(doc.Paragraphs, export.ParagraphBlock{
			Text:  snapshot.ParagraphText(i),
			Image: snapshot.Paragraphs[i].Image,
		})
	}
	return export.Encode(doc)
}

// exportFormat builds the WAVE format from the configured audio keys, the
// same ones the player and the cloud synthesizer use.
func exportFormat() pcm.Format {
	return pcm.Format{
		SampleRate:    viper.GetInt("audio.sample_rate"),
		Channels:      viper.GetInt("audio.channels"),
		BitsPerSample: 16,
	}
}

func (st *Studio) chooseTitle() string {
	if titles := st.Session.Titles(); len(titles) > 0 {
		return titles[0]
	}
	return ""
}

// displayStory prints the story with regenerated sentences highlighted,
// then schedules the highlight sweep.
func (st *Studio) displayStory() {
	snapshot := st.Session.Story()
	if snapshot.Len() == 0 {
		colours.Warning.Println("🔍 No story yet.")
		return
	}

	fmt.Println()
	colours.Title.Printf("📖 Your %s story (%s)\n", st.Session.Genre(), snapshot.Stage())
	fmt.Println()

	changed := false
	for i, paragraph := range snapshot.Paragraphs {
		colours.Info.Printf("¶ %d", i+1)
		if paragraph.Image != nil {
			fmt.Print(" 🖼️")
		}
		fmt.Println()
		for _, chunk := range paragraph.Chunks {
			if chunk.Changed {
				changed = true
				colours.Changed.Printf("%s ", chunk.Text)
			} else {
				colours.Story.Printf("%s ", chunk.Text)
			}
		}
		fmt.Println()
		fmt.Println()
	}

	if changed {
		time.AfterFunc(highlightLinger, st.Session.ClearHighlights)
	}
}

// ShowGenres lists the supported genres.
func (st *Studio) ShowGenres(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("🎭 Supported genres 🎭")
	fmt.Println()
	for _, genre := range gen.Genres() {
		fmt.Printf("  • %s\n", genre)
	}
	fmt.Println()
	colours.Info.Printf("💡 Current genre: %s (set with write --genre)\n", viper.GetString("story.genre"))
}

// ConfigureSettings shows the active configuration.
func (st *Studio) ConfigureSettings(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("⚙️ Cantastorie Settings ⚙️")
	fmt.Println()

	colours.Prompt.Println("🎤 Narration:")
	fmt.Printf("  • Engine: %s\n", viper.GetString("speech.engine"))
	fmt.Printf("  • Voice: %s\n", viper.GetString("speech.voice"))
	fmt.Printf("  • Sample rate: %d Hz\n", viper.GetInt("audio.sample_rate"))
	fmt.Println()

	colours.Prompt.Println("🧠 Models:")
	fmt.Printf("  • Text: %s\n", viper.GetString("gen.model"))
	fmt.Printf("  • Speech: %s\n", viper.GetString("gen.tts_model"))
	fmt.Printf("  • Image: %s\n", viper.GetString("gen.image_model"))
	fmt.Println()

	colours.Info.Println("💡 Override any of these in $HOME/.cantastorie/cantastorie.yaml")
}

// Close stops playback and releases the session.
func (st *Studio) Close() {
	st.Session.StopPlayback()
	st.Session.Close()
	st.Cancel()
}

// loadImage reads an image file into the base64 form the backend expects.
func loadImage(path string) (story.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return story.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return story.Image{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: mimeTypeFor(path),
	}, nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
