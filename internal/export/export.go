// Package export assembles the finished story into a single
// self-contained HTML artifact: cover image, title, paragraph blocks with
// interleaved illustrations, and the narration as an embedded WAVE data
// URI playable by any standard media player.
package export

import (
	"bytes"
	"fmt"
	"html/template"

	"cantastorie/internal/audio/pcm"
	"cantastorie/internal/domain/story"
)

// ParagraphBlock is one paragraph of prose with its optional illustration.
type ParagraphBlock struct {
	Text  string
	Image *story.Image
}

// Document is everything the artifact embeds. AudioWAV is a complete
// RIFF/WAVE container, typically built with pcm.EncodeWAV.
type Document struct {
	Title      string
	Genre      string
	Cover      story.Image
	Paragraphs []ParagraphBlock
	AudioWAV   []byte
}

// Theme is the cosmetic palette applied per genre.
type Theme struct {
	Background string
	Panel      string
	Accent     string
	Text       string
}

var genreThemes = map[string]Theme{
	"Fantasy": {Background: "#1b1430", Panel: "#2a2145", Accent: "#c4a7ff", Text: "#e8e2f7"},
	"Sci-Fi":  {Background: "#06121f", Panel: "#0e2233", Accent: "#6fd8ff", Text: "#d9ecf5"},
	"Horror":  {Background: "#120a0a", Panel: "#231212", Accent: "#e05c5c", Text: "#e6dada"},
	"Mystery": {Background: "#101419", Panel: "#1c2430", Accent: "#e0c36f", Text: "#dde4ec"},
	"Romance": {Background: "#2a1220", Panel: "#3d1d31", Accent: "#ff9ec4", Text: "#f7e2ec"},
}

var defaultTheme = Theme{Background: "#111827", Panel: "#1f2937", Accent: "#a5b4fc", Text: "#d1d5db"}

// ThemeFor returns the palette for a genre, or the default for anything
// unrecognized.
func ThemeFor(genre string) Theme {
	if t, ok := genreThemes[genre]; ok {
		return t
	}
	return defaultTheme
}

var pageTemplate = template.Must(template.New("story").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: Georgia, 'Times New Roman', serif;
            line-height: 1.7;
            background-color: {{.Theme.Background}};
            color: {{.Theme.Text}};
            margin: 0;
            padding: 2rem;
        }
        .container {
            max-width: 800px;
            margin: 0 auto;
            background-color: {{.Theme.Panel}};
            border-radius: 0.75rem;
            padding: 2rem;
        }
        img {
            max-width: 100%;
            border-radius: 0.5rem;
            margin-bottom: 1.5rem;
        }
        h1 {
            color: {{.Theme.Accent}};
            font-size: 1.875rem;
            margin-bottom: 1rem;
        }
        p {
            white-space: pre-wrap;
        }
        audio {
            width: 100%;
            margin-top: 2rem;
        }
    </style>
</head>
<body>
    <div class="container">
        <img src="{{.CoverURI}}" alt="Cover image">
        <h1>{{.Title}}</h1>
{{- range .Blocks}}
        <p>{{.Text}}</p>
{{- if .ImageURI}}
        <img src="{{.ImageURI}}" alt="Illustration">
{{- end}}
{{- end}}
        <audio controls src="{{.AudioURI}}">
            Your browser does not support the audio element.
        </audio>
    </div>
</body>
</html>
`))

type pageBlock struct {
	Text     string
	ImageURI template.URL
}

type pageData struct {
	Title    string
	Theme    Theme
	CoverURI template.URL
	Blocks   []pageBlock
	AudioURI template.URL
}

func imageDataURI(img story.Image) template.URL {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return template.URL(fmt.Sprintf("data:%s;base64,%s", mime, img.Data))
}

// Encode renders the document. It requires a non-empty story and a cover
// image; it performs no file or network I/O.
func Encode(doc Document) ([]byte, error) {
	if len(doc.Paragraphs) == 0 {
		return nil, fmt.Errorf("export: no story text")
	}
	if doc.Cover.Data == "" {
		return nil, fmt.Errorf("export: no cover image")
	}

	title := doc.Title
	if title == "" {
		title = "The Beginning..."
	}

	data := pageData{
		Title:    title,
		Theme:    ThemeFor(doc.Genre),
		CoverURI: imageDataURI(doc.Cover),
		AudioURI: template.URL(pcm.WAVDataURI(doc.AudioWAV)),
	}
	for _, p := range doc.Paragraphs {
		block := pageBlock{Text: p.Text}
		if p.Image != nil {
			block.ImageURI = imageDataURI(*p.Image)
		}
		data.Blocks = append(data.Blocks, block)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("export: render failed: %w", err)
	}
	return buf.Bytes(), nil
}
