package inference

// MentalHealth is the static wellness guidance attached to a prediction
type MentalHealth struct {
	Status     string `json:"status"`
	Severity   string `json:"severity"`
	Suggestion string `json:"suggestion"`
}

var wellnessByEmotion = map[string]MentalHealth{
	"Anger": {
		Status:     "elevated_stress",
		Severity:   "moderate",
		Suggestion: "Anger management recommended",
	},
	"Fear": {
		Status:     "anxiety_symptoms",
		Severity:   "moderate",
		Suggestion: "Try grounding exercises",
	},
	"Happy": {
		Status:     "positive_emotional_state",
		Severity:   "none",
		Suggestion: "Keep nurturing positive emotions",
	},
	"Neutral": {
		Status:     "balanced_emotional_state",
		Severity:   "none",
		Suggestion: "Maintain emotional balance",
	},
	"Sad": {
		Status:     "low_mood_indicators",
		Severity:   "moderate",
		Suggestion: "Reach out to supportive people",
	},
}

var unknownWellness = MentalHealth{
	Status:     "unknown",
	Severity:   "mild",
	Suggestion: "Take care",
}

// Wellness looks up the guidance for an emotion label. Labels outside the
// table get a generic entry.
func Wellness(emotion string) MentalHealth {
	if mh, ok := wellnessByEmotion[emotion]; ok {
		return mh
	}
	return unknownWellness
}
