package gen

import "testing"

func line(s Speaker, text string) ScriptLine {
	return ScriptLine{Speaker: s, Text: text}
}

func distinct(script []ScriptLine) int {
	return len(Speakers(script))
}

func TestMergeSpeakersPassThrough(t *testing.T) {
	script := []ScriptLine{
		line(SpeakerNarrator, "It was a dark night."),
		line(SpeakerMale, "Who goes there?"),
	}
	got := MergeSpeakers(script)
	if distinct(got) != 2 {
		t.Fatalf("distinct speakers = %d, want 2", distinct(got))
	}
	for i := range script {
		if got[i] != script[i] {
			t.Errorf("line %d altered: %+v", i, got[i])
		}
	}
}

func TestMergeSpeakersFemalesFoldIntoNarratorWhenMalePresent(t *testing.T) {
	script := []ScriptLine{
		line(SpeakerNarrator, "n"),
		line(SpeakerMale, "m"),
		line(SpeakerFemale1, "f1"),
		line(SpeakerFemale2, "f2"),
	}
	got := MergeSpeakers(script)
	if distinct(got) != 2 {
		t.Fatalf("distinct speakers = %d, want 2", distinct(got))
	}
	if got[2].Speaker != SpeakerNarrator || got[3].Speaker != SpeakerNarrator {
		t.Errorf("female lines not folded into narrator: %+v", got)
	}
	if got[1].Speaker != SpeakerMale {
		t.Errorf("male line lost: %+v", got[1])
	}
}

func TestMergeSpeakersSecondFemaleFoldsIntoNarrator(t *testing.T) {
	script := []ScriptLine{
		line(SpeakerNarrator, "n"),
		line(SpeakerFemale1, "f1"),
		line(SpeakerFemale2, "f2"),
	}
	got := MergeSpeakers(script)
	if distinct(got) != 2 {
		t.Fatalf("distinct speakers = %d, want 2", distinct(got))
	}
	if got[2].Speaker != SpeakerNarrator {
		t.Errorf("second female not folded: %+v", got[2])
	}
	if got[1].Speaker != SpeakerFemale1 {
		t.Errorf("first female lost: %+v", got[1])
	}
}

func TestMergeSpeakersNoNarratorFallback(t *testing.T) {
	script := []ScriptLine{
		line(SpeakerMale, "m"),
		line(SpeakerFemale1, "f1"),
		line(SpeakerFemale2, "f2"),
	}
	got := MergeSpeakers(script)
	if distinct(got) != 2 {
		t.Fatalf("distinct speakers = %d, want 2", distinct(got))
	}
	if got[2].Speaker != SpeakerMale {
		t.Errorf("trailing speaker should fold into first: %+v", got[2])
	}
}

func TestVoiceForNarratorPairs(t *testing.T) {
	tests := []struct {
		name     string
		speakers []Speaker
		expected map[Speaker]string
	}{
		{
			"narrator and male",
			[]Speaker{SpeakerNarrator, SpeakerMale},
			map[Speaker]string{SpeakerNarrator: "Kore", SpeakerMale: "Puck"},
		},
		{
			"narrator and female",
			[]Speaker{SpeakerNarrator, SpeakerFemale1},
			map[Speaker]string{SpeakerNarrator: "Kore", SpeakerFemale1: "Zephyr"},
		},
		{
			"two females",
			[]Speaker{SpeakerFemale1, SpeakerFemale2},
			map[Speaker]string{SpeakerFemale1: "Kore", SpeakerFemale2: "Zephyr"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VoiceFor(tt.speakers)
			for s, want := range tt.expected {
				if got[s] != want {
					t.Errorf("voice for %s = %q, want %q", s, got[s], want)
				}
			}
		})
	}
}
