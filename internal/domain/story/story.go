package story

import "strings"

// Stage classifies the narrative arc by paragraph count.
type Stage int

const (
	StageEmpty Stage = iota
	StageOpening
	StageDevelopment
	StageConcluded
)

func (s Stage) String() string {
	switch s {
	case StageOpening:
		return "opening"
	case StageDevelopment:
		return "development"
	case StageConcluded:
		return "concluded"
	default:
		return "empty"
	}
}

// Chunk is the smallest editable narrative fragment, roughly a sentence.
// Changed marks a short-lived highlight after a regeneration or rewrite;
// it is cleared by ClearChanged.
type Chunk struct {
	Text    string
	Changed bool
}

// Image is an encoded illustration: base64 payload plus its MIME type.
type Image struct {
	Data     string
	MIMEType string
}

// Paragraph is one story beat: an ordered run of chunks and an optional
// illustration. Paragraph identity is positional; paragraphs are never
// reordered.
type Paragraph struct {
	Chunks []Chunk
	Image  *Image
}

// Text joins the paragraph's chunks with single spaces.
func (p Paragraph) Text() string {
	parts := make([]string, len(p.Chunks))
	for i, c := range p.Chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// Story is an ordered sequence of paragraphs. All operations are pure:
// they return a fresh Story and never mutate the receiver, so callers can
// treat Story values as snapshots. Out-of-range indexes are no-ops
// returning the input unchanged.
type Story struct {
	Paragraphs []Paragraph
}

// New builds a one-paragraph story from chunk texts.
func New(chunks []string) Story {
	return Story{}.Append(chunks)
}

// Len returns the paragraph count.
func (s Story) Len() int {
	return len(s.Paragraphs)
}

// Stage derives the arc stage from the paragraph count.
func (s Story) Stage() Stage {
	switch n := len(s.Paragraphs); {
	case n == 0:
		return StageEmpty
	case n == 1:
		return StageOpening
	case n == 2:
		return StageDevelopment
	default:
		return StageConcluded
	}
}

func newChunks(texts []string, changed bool) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Text: t, Changed: changed}
	}
	return chunks
}

func (s Story) clone() Story {
	out := Story{Paragraphs: make([]Paragraph, len(s.Paragraphs))}
	for i, p := range s.Paragraphs {
		cp := Paragraph{Chunks: make([]Chunk, len(p.Chunks))}
		copy(cp.Chunks, p.Chunks)
		if p.Image != nil {
			img := *p.Image
			cp.Image = &img
		}
		out.Paragraphs[i] = cp
	}
	return out
}

// Append adds one paragraph, with no illustration, at the end.
func (s Story) Append(chunks []string) Story {
	out := s.clone()
	out.Paragraphs = append(out.Paragraphs, Paragraph{Chunks: newChunks(chunks, false)})
	return out
}

// ReplaceChunk swaps the text of a single chunk and marks it changed.
func (s Story) ReplaceChunk(paragraph, chunk int, text string) Story {
	if paragraph < 0 || paragraph >= len(s.Paragraphs) {
		return s
	}
	if chunk < 0 || chunk >= len(s.Paragraphs[paragraph].Chunks) {
		return s
	}
	out := s.clone()
	out.Paragraphs[paragraph].Chunks[chunk] = Chunk{Text: text, Changed: true}
	return out
}

// ReplaceParagraph replaces all chunks of one paragraph. Every new chunk is
// marked changed, and the paragraph's illustration is dropped since it was
// generated against the old text.
func (s Story) ReplaceParagraph(paragraph int, chunks []string) Story {
	if paragraph < 0 || paragraph >= len(s.Paragraphs) {
		return s
	}
	out := s.clone()
	out.Paragraphs[paragraph] = Paragraph{Chunks: newChunks(chunks, true)}
	return out
}

// ReplaceAll rebuilds the whole story from new paragraphs, used by global
// rewrites. If the paragraph count is unchanged the existing illustrations
// are kept positionally; otherwise they are all dropped. Every chunk in the
// result is marked changed.
func (s Story) ReplaceAll(paragraphs [][]string) Story {
	out := Story{Paragraphs: make([]Paragraph, len(paragraphs))}
	keepImages := len(paragraphs) == len(s.Paragraphs)
	for i, texts := range paragraphs {
		p := Paragraph{Chunks: newChunks(texts, true)}
		if keepImages && s.Paragraphs[i].Image != nil {
			img := *s.Paragraphs[i].Image
			p.Image = &img
		}
		out.Paragraphs[i] = p
	}
	return out
}

// SetImage attaches an illustration to a paragraph.
func (s Story) SetImage(paragraph int, img Image) Story {
	if paragraph < 0 || paragraph >= len(s.Paragraphs) {
		return s
	}
	out := s.clone()
	out.Paragraphs[paragraph].Image = &img
	return out
}

// ClearChanged drops every highlight mark, the time-based sweep target.
func (s Story) ClearChanged() Story {
	out := s.clone()
	for i := range out.Paragraphs {
		for j := range out.Paragraphs[i].Chunks {
			out.Paragraphs[i].Chunks[j].Changed = false
		}
	}
	return out
}

// ParagraphText returns the prose of one paragraph, or "" if out of range.
func (s Story) ParagraphText(paragraph int) string {
	if paragraph < 0 || paragraph >= len(s.Paragraphs) {
		return ""
	}
	return s.Paragraphs[paragraph].Text()
}

// FullText is the canonical serialization: chunks joined with single spaces,
// paragraphs separated by a blank line. Every downstream text consumer
// (speech synthesis, titles, continuation prompts) reads this form.
func (s Story) FullText() string {
	parts := make([]string, len(s.Paragraphs))
	for i, p := range s.Paragraphs {
		parts[i] = p.Text()
	}
	return strings.Join(parts, "\n\n")
}

// Context returns the prose before and after one paragraph, for
// regeneration prompts.
func (s Story) Context(paragraph int) (before, after string) {
	if paragraph < 0 || paragraph >= len(s.Paragraphs) {
		return "", ""
	}
	var b, a []string
	for i, p := range s.Paragraphs {
		switch {
		case i < paragraph:
			b = append(b, p.Text())
		case i > paragraph:
			a = append(a, p.Text())
		}
	}
	return strings.Join(b, "\n\n"), strings.Join(a, "\n\n")
}
