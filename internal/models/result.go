package models

type ResultStatus string

const (
	StatusProcessing ResultStatus = "processing"
	StatusCompleted  ResultStatus = "completed"
	StatusError      ResultStatus = "error"
)

// BodyLanguage is the fixed six-dimension feature set, each value in [0,1].
type BodyLanguage struct {
	Warmth           float64 `bson:"warmth" json:"warmth"`
	Competence       float64 `bson:"competence" json:"competence"`
	Affect           float64 `bson:"affect" json:"affect"`
	EyeContactRatio  float64 `bson:"eye_contact_ratio" json:"eyeContactRatio"`
	GestureIntensity float64 `bson:"gesture_intensity" json:"gestureIntensity"`
	PostureStability float64 `bson:"posture_stability" json:"postureStability"`
}

func (b BodyLanguage) Vector() []float32 {
	return []float32{
		float32(b.Warmth),
		float32(b.Competence),
		float32(b.Affect),
		float32(b.EyeContactRatio),
		float32(b.GestureIntensity),
		float32(b.PostureStability),
	}
}

func (b BodyLanguage) Mean() float64 {
	return (b.Warmth + b.Competence + b.Affect + b.EyeContactRatio + b.GestureIntensity + b.PostureStability) / 6
}

type Feedback struct {
	Strengths    []string `bson:"strengths" json:"strengths"`
	Improvements []string `bson:"improvements" json:"areasForImprovement"`
	OverallScore int      `bson:"overall_score" json:"overallScore"`
	Narrative    string   `bson:"narrative" json:"detailedFeedback"`
	Suggestions  []string `bson:"suggestions" json:"suggestions"`
}

// ProcessedResult is the outcome of one processing run for a question take.
// Fields resolved before a failure are kept even when Status is StatusError.
type ProcessedResult struct {
	QuestionIndex int           `json:"questionIndex"`
	Transcript    string        `json:"transcript,omitempty"`
	BodyLanguage  *BodyLanguage `json:"bodyLanguage,omitempty"`
	Vector        []float32     `json:"vector,omitempty"`
	Feedback      *Feedback     `json:"feedback,omitempty"`
	Status        ResultStatus  `json:"status"`
	ErrorMessage  string        `json:"error,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	RecordingURL  string        `json:"recordingUrl,omitempty"`
}

// Complete reports whether the result carries everything a vector record needs.
func (r *ProcessedResult) Complete() bool {
	return r != nil && r.Transcript != "" && r.BodyLanguage != nil && len(r.Vector) > 0
}
