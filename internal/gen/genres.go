package gen

// GenreInstructions steer the opening, continuation and conclusion prompts
// for one genre.
type GenreInstructions struct {
	Opening      string
	Continuation string
	Conclusion   string
}

var genreInstructions = map[string]GenreInstructions{
	"Fantasy": {
		Opening:      "Build an atmosphere of wonder and ancient mystery. Center a magical element, a prophecy, a mythical creature or a legendary artifact. The world should feel vast and steeped in history.",
		Continuation: "Deepen the world's lore. Let the protagonist uncover a new facet of the magic, face a mythical creature, or unearth a secret from the past. The action should feel epic.",
		Conclusion:   "Deliver an epic, memorable ending. Magic triumphs, a prophecy is fulfilled, or the world is changed forever by the protagonist's deeds. The resolution should be worthy of a legend.",
	},
	"Sci-Fi": {
		Opening:      "Immerse the reader in a futuristic or technologically advanced world. Introduce an intriguing scientific concept, a technological anomaly, an ethical dilemma, or first contact with the unknown.",
		Continuation: "Explore the implications of the introduced technology or concept. Tension should come from survival in a hostile environment, a technological mystery, or an ideological conflict.",
		Conclusion:   "Provide an intellectually satisfying resolution. The mystery is solved, humanity takes a step forward (or back), or the protagonist makes a future-defining choice.",
	},
	"Horror": {
		Opening:      "Build an atmosphere of dread and oppression. Focus on the unknown, psychological unease and the feeling of being watched. The inciting event should be subtle but deeply disturbing.",
		Continuation: "Escalate the terror. The threat becomes tangible and personal. Play with the protagonist's perception, making them doubt their own sanity. Isolation is key.",
		Conclusion:   "Close with a terrifying climax. The protagonist may survive scarred, succumb to the horror, or discover a truth more frightening still. The ending need not be happy.",
	},
	"Mystery": {
		Opening:      "Present a gripping enigma: an inexplicable crime, a mysterious disappearance or a seemingly impossible event. Introduce the central character and plant the first crucial clue.",
		Continuation: "Develop the investigation. Introduce new suspects, red herrings and reversals. Every paragraph should add a puzzle piece and raise the stakes.",
		Conclusion:   "Reveal the truth with a brilliant, logical twist. Every clue must converge. The final reveal should surprise yet cohere with everything before it.",
	},
	"Romance": {
		Opening:      "Depict a meaningful encounter or pivotal moment that sparks something between two characters. Focus on inner feelings, first impressions and the emotional tension between them.",
		Continuation: "Develop the relationship. Explore the obstacles, inner or outer, the characters must overcome. Let dialogue, gestures and evolving feelings drive the narrative.",
		Conclusion:   "Bring the love story to an emotionally fulfilling resolution. The characters overcome the final obstacles and declare themselves, ending in a moment of union.",
	},
}

// InstructionsFor returns the prompt steering for a genre, falling back to
// Fantasy for anything unrecognized.
func InstructionsFor(genre string) GenreInstructions {
	if in, ok := genreInstructions[genre]; ok {
		return in
	}
	return genreInstructions["Fantasy"]
}

// Genres lists the supported genre keys.
func Genres() []string {
	return []string{"Fantasy", "Sci-Fi", "Horror", "Mystery", "Romance"}
}
