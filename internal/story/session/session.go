// Package session is the generation orchestrator: it mediates every call
// to the generation backend, enforces the narrative-arc progression, and
// propagates invalidation of derived artifacts (audio, titles,
// illustrations) when the story text changes.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"cantastorie/internal/audio/playback"
	"cantastorie/internal/domain/story"
	"cantastorie/internal/gen"
	"cantastorie/internal/gen/speech"
)

var (
	// ErrArcViolation reports a continuation request outside the arc stage
	// it is valid for. Unreachable through the normal UI flow, so it fails
	// loudly instead of degrading.
	ErrArcViolation = fmt.Errorf("session: narrative arc violation")

	// ErrBusy reports an overlapping request against a unit that already
	// has a request in flight.
	ErrBusy = fmt.Errorf("session: operation already in flight")

	// ErrNoStory reports an edit against an absent story.
	ErrNoStory = fmt.Errorf("session: no story")

	// ErrOutOfRange reports a chunk or paragraph reference outside the
	// current story.
	ErrOutOfRange = fmt.Errorf("session: index out of range")

	// ErrSuperseded reports a request whose result was discarded because
	// the story changed under it: a newer initial generation replaced it,
	// or a whole-story rewrite landed while it was in flight.
	ErrSuperseded = fmt.Errorf("session: request superseded")
)

type opKind int

const (
	opGenerate opKind = iota
	opAdvance
	opEdit // chunk or paragraph regeneration, serialized per paragraph
	opRewrite
	opIllustrate
	opTitles
	opTwists
	opSpeech
)

type opKey struct {
	kind      opKind
	paragraph int
}

// OpeningParams are the user inputs for the initial generation alongside
// the inspiration image.
type OpeningParams struct {
	Theme      string
	Characters string
	Location   string
	Hint       string
}

// Session owns one story-authoring session: the evolving story value, the
// anchor illustration, the derived-artifact caches and the playback
// engine. All methods are safe for concurrent use; overlapping requests
// against the same unit are rejected with ErrBusy, and a superseded
// initial generation never mutates state.
type Session struct {
	mu      sync.Mutex
	backend gen.Backend
	synth   speech.Synthesizer
	player  *playback.Player

	genre       string
	sourceImage *story.Image
	story       story.Story
	anchor      *story.Image
	refined     bool

	audioCache string
	audioSeq   int // bumped by invalidation; a synthesis finishing late is stale
	titles     []string

	inFlight  map[opKey]struct{}
	genSeq    int
	genCancel context.CancelFunc
}

func New(backend gen.Backend, synth speech.Synthesizer, player *playback.Player, genre string) *Session {
	return &Session{
		backend:  backend,
		synth:    synth,
		player:   player,
		genre:    genre,
		inFlight: map[opKey]struct{}{},
	}
}

// begin claims an operation slot or reports ErrBusy.
func (s *Session) begin(key opKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[key]; ok {
		return ErrBusy
	}
	s.inFlight[key] = struct{}{}
	return nil
}

func (s *Session) end(key opKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// invalidateTextDerivedLocked drops everything derived from the story
// text: the cached narration payload, the decoded playback buffer and any
// title suggestions.
func (s *Session) invalidateTextDerivedLocked() {
	s.audioCache = ""
	s.audioSeq++
	s.titles = nil
	if s.player != nil {
		s.player.Invalidate()
	}
}

// Story returns a snapshot of the current story value.
func (s *Session) Story() story.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.story
}

func (s *Session) Genre() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genre
}

// SetGenre changes the genre used for subsequent generation calls.
func (s *Session) SetGenre(genre string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genre = genre
}

// Titles returns the cached title suggestions, if any.
func (s *Session) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titles
}

// Refined reports whether a refinement pass has been applied. This is an
// explicit history flag, never inferred from chunk state.
func (s *Session) Refined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refined
}

// Anchor returns the style/continuity reference illustration, if set.
func (s *Session) Anchor() *story.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor
}

// SourceImage returns the user's inspiration image, if set.
func (s *Session) SourceImage() *story.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceImage
}

// SetSourceImage installs the inspiration image for the next generation.
func (s *Session) SetSourceImage(img story.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceImage = &img
}

// Generate runs the initial story generation. Issuing a new request while
// one is pending cancels the old one; a cancelled or superseded request's
// result is discarded and never mutates the session.
func (s *Session) Generate(ctx context.Context, params OpeningParams) error {
	s.mu.Lock()
	if s.sourceImage == nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to generate story: no inspiration image")
	}
	img := *s.sourceImage
	genre := s.genre
	if s.genCancel != nil {
		s.genCancel()
	}
	s.genSeq++
	seq := s.genSeq
	ctx, cancel := context.WithCancel(ctx)
	s.genCancel = cancel
	s.mu.Unlock()
	defer cancel()

	chunks, err := s.backend.GenerateOpening(ctx, gen.OpeningRequest{
		ImageData:  img.Data,
		MIMEType:   img.MIMEType,
		Genre:      genre,
		Theme:      params.Theme,
		Characters: params.Characters,
		Location:   params.Location,
		Hint:       params.Hint,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.genSeq {
		// A newer generation request owns the session now.
		return ErrSuperseded
	}
	if err != nil {
		if ctx.Err() != nil {
			return ErrSuperseded
		}
		return fmt.Errorf("failed to generate story: %w", err)
	}

	s.story = story.New(chunks)
	s.anchor = nil
	s.refined = false
	s.invalidateTextDerivedLocked()
	return nil
}

// CancelGenerate cancels any in-flight initial generation.
func (s *Session) CancelGenerate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genCancel != nil {
		s.genCancel()
		s.genCancel = nil
	}
	s.genSeq++
}

// Advance moves the arc forward one stage: a one-paragraph story gets its
// continuation, a two-paragraph story its conclusion. Anything else is an
// arc violation.
func (s *Session) Advance(ctx context.Context, hint string) error {
	key := opKey{kind: opAdvance}
	if err := s.begin(key); err != nil {
		return err
	}
	defer s.end(key)

	s.mu.Lock()
	stage := s.story.Stage()
	fullText := s.story.FullText()
	genre := s.genre
	s.mu.Unlock()

	var chunks []string
	var err error
	switch stage {
	case story.StageOpening:
		chunks, err = s.backend.Continue(ctx, fullText, genre, hint)
		if err != nil {
			return fmt.Errorf("failed to continue the story: %w", err)
		}
	case story.StageDevelopment:
		chunks, err = s.backend.Conclude(ctx, fullText, genre, hint)
		if err != nil {
			return fmt.Errorf("failed to conclude the story: %w", err)
		}
	default:
		return fmt.Errorf("%w: cannot advance a story with %d paragraphs", ErrArcViolation, s.Story().Len())
	}

	s.mu.Lock()
	if s.story.Stage() != stage {
		// A whole-story rewrite landed while the continuation was in
		// flight; appending now would break the arc.
		s.mu.Unlock()
		return fmt.Errorf("%w: the story was rewritten while advancing", ErrSuperseded)
	}
	s.story = s.story.Append(chunks)
	concluded := s.story.Stage() == story.StageConcluded
	s.invalidateTextDerivedLocked()
	s.mu.Unlock()

	if concluded {
		// Convenience re-fetch once the arc completes; the append already
		// succeeded, so a title failure is only logged.
		if titles, err := s.backend.SuggestTitles(ctx, s.Story().FullText()); err != nil {
			logrus.WithError(err).Warn("automatic title suggestion failed")
		} else {
			s.mu.Lock()
			s.titles = titles
			s.mu.Unlock()
		}
	}
	return nil
}

// RegenerateChunk rewrites one sentence. Edits are serialized per
// paragraph: a second edit targeting the same paragraph while one is in
// flight is rejected.
func (s *Session) RegenerateChunk(ctx context.Context, paragraph, chunk int, hint string) error {
	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return ErrNoStory
	}
	if paragraph < 0 || paragraph >= s.story.Len() {
		s.mu.Unlock()
		return fmt.Errorf("%w: paragraph %d", ErrOutOfRange, paragraph)
	}
	if chunk < 0 || chunk >= len(s.story.Paragraphs[paragraph].Chunks) {
		s.mu.Unlock()
		return fmt.Errorf("%w: chunk %d of paragraph %d", ErrOutOfRange, chunk, paragraph)
	}
	paragraphText := s.story.ParagraphText(paragraph)
	chunkText := s.story.Paragraphs[paragraph].Chunks[chunk].Text
	s.mu.Unlock()

	key := opKey{kind: opEdit, paragraph: paragraph}
	if err := s.begin(key); err != nil {
		return err
	}
	defer s.end(key)

	text, err := s.backend.RegenerateChunk(ctx, paragraphText, chunkText, hint)
	if err != nil {
		return fmt.Errorf("failed to regenerate the text: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = s.story.ReplaceChunk(paragraph, chunk, text)
	s.invalidateTextDerivedLocked()
	return nil
}

// RegenerateParagraph rewrites one whole paragraph in context.
func (s *Session) RegenerateParagraph(ctx context.Context, paragraph int, hint string) error {
	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return ErrNoStory
	}
	if paragraph < 0 || paragraph >= s.story.Len() {
		s.mu.Unlock()
		return fmt.Errorf("%w: paragraph %d", ErrOutOfRange, paragraph)
	}
	before, after := s.story.Context(paragraph)
	paragraphText := s.story.ParagraphText(paragraph)
	s.mu.Unlock()

	key := opKey{kind: opEdit, paragraph: paragraph}
	if err := s.begin(key); err != nil {
		return err
	}
	defer s.end(key)

	chunks, err := s.backend.RegenerateParagraph(ctx, before, after, paragraphText, hint)
	if err != nil {
		return fmt.Errorf("failed to regenerate the paragraph: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = s.story.ReplaceParagraph(paragraph, chunks)
	s.invalidateTextDerivedLocked()
	return nil
}

// Refine applies a global polish pass. The paragraph count may change;
// the image-preservation policy of the document model decides what
// happens to illustrations.
func (s *Session) Refine(ctx context.Context) error {
	key := opKey{kind: opRewrite}
	if err := s.begin(key); err != nil {
		return err
	}
	defer s.end(key)

	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return ErrNoStory
	}
	fullText := s.story.FullText()
	genre := s.genre
	s.mu.Unlock()

	paragraphs, err := s.backend.Refine(ctx, fullText, genre)
	if err != nil {
		return fmt.Errorf("failed to refine the story: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = s.story.ReplaceAll(paragraphs)
	s.refined = true
	s.invalidateTextDerivedLocked()
	return nil
}

// SuggestTitles fetches title ideas. Titles never alter narrative text, so
// the audio caches survive.
func (s *Session) SuggestTitles(ctx context.Context) ([]string, error) {
	key := opKey{kind: opTitles}
	if err := s.begin(key); err != nil {
		return nil, err
	}
	defer s.end(key)

	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return nil, ErrNoStory
	}
	fullText := s.story.FullText()
	s.mu.Unlock()

	titles, err := s.backend.SuggestTitles(ctx, fullText)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest titles: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = titles
	return titles, nil
}

// SuggestPlotTwists fetches twist ideas without altering anything.
func (s *Session) SuggestPlotTwists(ctx context.Context, category, focus string) ([]string, error) {
	key := opKey{kind: opTwists}
	if err := s.begin(key); err != nil {
		return nil, err
	}
	defer s.end(key)

	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return nil, ErrNoStory
	}
	fullText := s.story.FullText()
	s.mu.Unlock()

	twists, err := s.backend.SuggestPlotTwists(ctx, fullText, category, focus)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest plot twists: %w", err)
	}
	return twists, nil
}

// ApplyPlotTwist rewrites the story around a chosen twist. The twist may
// break visual continuity, so the anchor illustration is cleared along
// with the text-derived caches.
func (s *Session) ApplyPlotTwist(ctx context.Context, twist string) error {
	key := opKey{kind: opRewrite}
	if err := s.begin(key); err != nil {
		return err
	}
	defer s.end(key)

	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return ErrNoStory
	}
	fullText := s.story.FullText()
	s.mu.Unlock()

	paragraphs, err := s.backend.ApplyPlotTwist(ctx, fullText, twist)
	if err != nil {
		return fmt.Errorf("failed to apply the plot twist: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = s.story.ReplaceAll(paragraphs)
	s.anchor = nil
	s.invalidateTextDerivedLocked()
	return nil
}

// Illustrate generates an illustration for one paragraph. The first
// successful illustration becomes the anchor reference for all later
// ones; illustration never touches the narration caches.
func (s *Session) Illustrate(ctx context.Context, paragraph int) error {
	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return ErrNoStory
	}
	if paragraph < 0 || paragraph >= s.story.Len() {
		s.mu.Unlock()
		return fmt.Errorf("%w: paragraph %d", ErrOutOfRange, paragraph)
	}
	if s.sourceImage == nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to illustrate: no inspiration image")
	}
	req := gen.IllustrationRequest{
		ParagraphText: s.story.ParagraphText(paragraph),
		Anchor:        s.anchor,
		Reference:     *s.sourceImage,
	}
	s.mu.Unlock()

	key := opKey{kind: opIllustrate, paragraph: paragraph}
	if err := s.begin(key); err != nil {
		return err
	}
	defer s.end(key)

	img, err := s.backend.SynthesizeIllustration(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to generate the illustration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = s.story.SetImage(paragraph, img)
	if s.anchor == nil {
		// First successful illustration wins the anchor slot.
		anchor := img
		s.anchor = &anchor
	}
	return nil
}

// Audio returns the base64 PCM narration for the current story text,
// synthesizing and caching it on first use. Playback and export share
// this path.
func (s *Session) Audio(ctx context.Context) (string, error) {
	key := opKey{kind: opSpeech}
	if err := s.begin(key); err != nil {
		return "", err
	}
	defer s.end(key)

	s.mu.Lock()
	if s.story.Len() == 0 {
		s.mu.Unlock()
		return "", ErrNoStory
	}
	if s.audioCache != "" {
		cached := s.audioCache
		s.mu.Unlock()
		return cached, nil
	}
	fullText := s.story.FullText()
	seq := s.audioSeq
	s.mu.Unlock()

	payload, err := s.synth.Synthesize(ctx, fullText)
	if err != nil {
		return "", fmt.Errorf("failed to generate audio: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.audioSeq {
		// The text is unchanged since the synthesis started, so the
		// payload is current and may be cached.
		s.audioCache = payload
	}
	return payload, nil
}

// Play starts or restarts narration playback.
func (s *Session) Play(ctx context.Context) error {
	return s.player.Start(ctx, s.Audio)
}

// PausePlayback pauses narration, keeping the decoded buffer.
func (s *Session) PausePlayback() {
	s.player.Pause()
}

// ResumePlayback resumes narration from the pause offset.
func (s *Session) ResumePlayback(ctx context.Context) error {
	return s.player.Resume(ctx, s.Audio)
}

// StopPlayback stops narration and resets the offset.
func (s *Session) StopPlayback() {
	s.player.Stop()
}

// PlaybackState reports the player's state machine state.
func (s *Session) PlaybackState() playback.State {
	return s.player.State()
}

// ClearHighlights sweeps the changed marks off every chunk.
func (s *Session) ClearHighlights() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.story = s.story.ClearChanged()
}

// Chat forwards a message to the writing assistant.
func (s *Session) Chat(ctx context.Context, history []gen.ChatMessage, message string) (string, error) {
	reply, err := s.backend.Chat(ctx, history, message)
	if err != nil {
		return "", fmt.Errorf("assistant is unavailable: %w", err)
	}
	return reply, nil
}

// Close cancels in-flight generation and releases playback resources.
func (s *Session) Close() {
	s.CancelGenerate()
	if s.player != nil {
		s.player.Invalidate()
	}
}
