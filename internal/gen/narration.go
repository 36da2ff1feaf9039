package gen

// Speaker tags a narration script line with the voice it belongs to.
type Speaker string

const (
	SpeakerNarrator Speaker = "NARRATOR"
	SpeakerMale     Speaker = "MALE"
	SpeakerFemale1  Speaker = "FEMALE_1"
	SpeakerFemale2  Speaker = "FEMALE_2"
)

// ScriptLine is one run of consecutive text attributed to a single speaker.
type ScriptLine struct {
	Speaker Speaker
	Text    string
}

// Speakers returns the distinct speakers of a script in order of first
// appearance.
func Speakers(script []ScriptLine) []Speaker {
	var out []Speaker
	seen := map[Speaker]bool{}
	for _, line := range script {
		if !seen[line.Speaker] {
			seen[line.Speaker] = true
			out = append(out, line.Speaker)
		}
	}
	return out
}

// MergeSpeakers reduces a script with three or more distinct speakers to at
// most two, since multi-voice synthesis supports two voices. Priority:
// keep the narrator plus the most distinct remaining voice (female parts
// fold into the narrator when a male voice is present, the second female
// voice folds into the narrator otherwise); with no narrator, every speaker
// past the second folds into the first. Scripts with two or fewer speakers
// pass through untouched.
func MergeSpeakers(script []ScriptLine) []ScriptLine {
	speakers := Speakers(script)
	if len(speakers) < 3 {
		return script
	}

	has := map[Speaker]bool{}
	for _, s := range speakers {
		has[s] = true
	}

	remap := func(f func(Speaker) Speaker) []ScriptLine {
		out := make([]ScriptLine, len(script))
		for i, line := range script {
			out[i] = ScriptLine{Speaker: f(line.Speaker), Text: line.Text}
		}
		return out
	}

	switch {
	case has[SpeakerNarrator] && has[SpeakerMale]:
		return remap(func(s Speaker) Speaker {
			if s == SpeakerFemale1 || s == SpeakerFemale2 {
				return SpeakerNarrator
			}
			return s
		})
	case has[SpeakerNarrator] && has[SpeakerFemale1] && has[SpeakerFemale2]:
		return remap(func(s Speaker) Speaker {
			if s == SpeakerFemale2 {
				return SpeakerNarrator
			}
			return s
		})
	default:
		first := speakers[0]
		merge := map[Speaker]bool{}
		for _, s := range speakers[2:] {
			merge[s] = true
		}
		return remap(func(s Speaker) Speaker {
			if merge[s] {
				return first
			}
			return s
		})
	}
}

// VoiceFor assigns a prebuilt synthesis voice to each speaker of a merged
// two-speaker script, keeping assignments stable across calls.
func VoiceFor(speakers []Speaker) map[Speaker]string {
	voices := map[Speaker]string{}
	hasNarrator := false
	for _, s := range speakers {
		if s == SpeakerNarrator {
			hasNarrator = true
		}
	}

	if hasNarrator {
		voices[SpeakerNarrator] = "Kore"
		for _, s := range speakers {
			if s == SpeakerNarrator {
				continue
			}
			if s == SpeakerMale {
				voices[s] = "Puck"
			} else {
				voices[s] = "Zephyr"
			}
		}
		return voices
	}

	for i, s := range speakers {
		switch {
		case i == 0:
			voices[s] = "Kore"
		case s == SpeakerMale:
			voices[s] = "Puck"
		default:
			voices[s] = "Zephyr"
		}
	}
	return voices
}
