package story

import "testing"

func twoParagraphs() Story {
	return New([]string{"Once upon a time,", "a door creaked open."}).
		Append([]string{"Beyond it lay the sea."})
}

func TestStageByParagraphCount(t *testing.T) {
	tests := []struct {
		name     string
		story    Story
		expected Stage
	}{
		{"empty", Story{}, StageEmpty},
		{"one paragraph", New([]string{"a"}), StageOpening},
		{"two paragraphs", twoParagraphs(), StageDevelopment},
		{"three paragraphs", twoParagraphs().Append([]string{"The end."}), StageConcluded},
		{"four paragraphs", twoParagraphs().Append([]string{"x"}).Append([]string{"y"}), StageConcluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.story.Stage(); got != tt.expected {
				t.Errorf("Stage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFullTextJoining(t *testing.T) {
	s := twoParagraphs()
	want := "Once upon a time, a door creaked open.\n\nBeyond it lay the sea."
	if got := s.FullText(); got != want {
		t.Errorf("FullText() = %q, want %q", got, want)
	}
}

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	s := New([]string{"a"})
	_ = s.Append([]string{"b"})
	if s.Len() != 1 {
		t.Errorf("receiver mutated: Len() = %d, want 1", s.Len())
	}
}

func TestReplaceChunk(t *testing.T) {
	s := twoParagraphs()
	got := s.ReplaceChunk(0, 1, "a window shattered.")

	if got.Paragraphs[0].Chunks[1].Text != "a window shattered." {
		t.Fatalf("chunk text = %q", got.Paragraphs[0].Chunks[1].Text)
	}
	if !got.Paragraphs[0].Chunks[1].Changed {
		t.Error("replaced chunk not marked changed")
	}
	if got.Paragraphs[0].Chunks[0].Changed {
		t.Error("sibling chunk marked changed")
	}
	if s.Paragraphs[0].Chunks[1].Text != "a door creaked open." {
		t.Error("receiver mutated")
	}
}

func TestReplaceChunkOutOfRangeIsNoOp(t *testing.T) {
	s := twoParagraphs()
	tests := []struct {
		name             string
		paragraph, chunk int
	}{
		{"paragraph too high", 5, 0},
		{"paragraph negative", -1, 0},
		{"chunk too high", 0, 9},
		{"chunk negative", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ReplaceChunk(tt.paragraph, tt.chunk, "zap")
			if got.FullText() != s.FullText() {
				t.Errorf("out-of-range replace altered story: %q", got.FullText())
			}
		})
	}
}

func TestReplaceParagraphMarksAllChangedAndDropsImage(t *testing.T) {
	s := twoParagraphs().SetImage(0, Image{Data: "abc", MIMEType: "image/png"})
	got := s.ReplaceParagraph(0, []string{"New start.", "New middle."})

	if got.Paragraphs[0].Image != nil {
		t.Error("stale illustration kept after paragraph replacement")
	}
	for i, c := range got.Paragraphs[0].Chunks {
		if !c.Changed {
			t.Errorf("chunk %d not marked changed", i)
		}
	}
	if got.Paragraphs[1].Text() != "Beyond it lay the sea." {
		t.Error("untouched paragraph altered")
	}
}

func TestReplaceAllImagePolicy(t *testing.T) {
	s := twoParagraphs().SetImage(1, Image{Data: "img", MIMEType: "image/png"})

	t.Run("same count keeps images positionally", func(t *testing.T) {
		got := s.ReplaceAll([][]string{{"one"}, {"two"}})
		if got.Paragraphs[1].Image == nil {
			t.Fatal("image dropped despite unchanged paragraph count")
		}
		if got.Paragraphs[0].Image != nil {
			t.Error("image appeared on a paragraph that never had one")
		}
	})

	t.Run("different count drops all images", func(t *testing.T) {
		got := s.ReplaceAll([][]string{{"one"}, {"two"}, {"three"}})
		for i, p := range got.Paragraphs {
			if p.Image != nil {
				t.Errorf("paragraph %d kept an image across a count change", i)
			}
		}
	})

	t.Run("all chunks marked changed", func(t *testing.T) {
		got := s.ReplaceAll([][]string{{"one", "more"}, {"two"}})
		for i, p := range got.Paragraphs {
			for j, c := range p.Chunks {
				if !c.Changed {
					t.Errorf("chunk %d/%d not marked changed", i, j)
				}
			}
		}
	})
}

func TestClearChanged(t *testing.T) {
	s := twoParagraphs().ReplaceChunk(0, 0, "rewritten")
	got := s.ClearChanged()
	for i, p := range got.Paragraphs {
		for j, c := range p.Chunks {
			if c.Changed {
				t.Errorf("chunk %d/%d still marked after sweep", i, j)
			}
		}
	}
}

func TestContext(t *testing.T) {
	s := twoParagraphs().Append([]string{"The end."})

	before, after := s.Context(1)
	if before != "Once upon a time, a door creaked open." {
		t.Errorf("before = %q", before)
	}
	if after != "The end." {
		t.Errorf("after = %q", after)
	}

	before, after = s.Context(0)
	if before != "" {
		t.Errorf("before of first paragraph = %q, want empty", before)
	}
	if after == "" {
		t.Error("after of first paragraph empty")
	}
}

func TestSetImageOutOfRangeIsNoOp(t *testing.T) {
	s := twoParagraphs()
	got := s.SetImage(7, Image{Data: "x"})
	for i, p := range got.Paragraphs {
		if p.Image != nil {
			t.Errorf("paragraph %d gained an image", i)
		}
	}
}
