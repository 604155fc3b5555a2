package models

// MindmapTree maps a parent concept to its children.
type MindmapTree map[string][]string

type FrameworkMatch struct {
	ID       string  `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Score    float64 `bson:"score" json:"score"`
	Category string  `bson:"category" json:"category"` // case_type|skill
}

type MindmapDelta struct {
	Missing        []string `bson:"missing" json:"missing"`
	Misprioritized []string `bson:"misprioritized" json:"misprioritized"`
	Redundant      []string `bson:"redundant" json:"redundant"`
}

type MindmapAnalysis struct {
	YourModel  MindmapTree  `bson:"your_model" json:"your_model"`
	IdealModel MindmapTree  `bson:"ideal_model" json:"ideal_model"`
	Delta      MindmapDelta `bson:"delta" json:"delta"`
	FixSummary string       `bson:"fix_summary" json:"fix_summary"`
}

type GradingResult struct {
	StructureScore     int      `bson:"structure_score" json:"structureScore"`
	InsightScore       int      `bson:"insight_score" json:"insightScore"`
	CommunicationScore int      `bson:"communication_score" json:"communicationScore"`
	BodyLanguageScore  int      `bson:"body_language_score" json:"bodyLanguageScore"`
	Comments           []string `bson:"comments" json:"comments"`
}

type QuestionResult struct {
	SessionID      string          `bson:"session_id" json:"sessionId"`
	QuestionIndex  int             `bson:"question_index" json:"questionIndex"`
	Transcript     string          `bson:"transcript" json:"transcript"`
	FrameworkMatch FrameworkMatch  `bson:"framework_match" json:"frameworkMatch"`
	Mindmap        MindmapAnalysis `bson:"mindmap" json:"mindmap"`
	Grading        GradingResult   `bson:"grading" json:"grading"`
	BodyLanguage   *BodyLanguage   `bson:"body_language,omitempty" json:"bodyLanguage,omitempty"`
}
