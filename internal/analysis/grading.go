package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/providers/llm"
)

const gradingPrompt = `You are an expert interview coach grading a case interview response.

**Framework:** %s

**Transcript:**
%q

**Mental Model Analysis:**
- Missing concepts: %s
- Misprioritized: %s
- Redundant: %s
- Fix summary: %s

**Body Language Metrics:**
%s

Grade the response from 0 to 100 on structure (organized, framework used well), insight
(key issues identified, good analysis) and communication (clear, easy to follow). Also give a
body language score from 0 to 100 and 3-5 specific, actionable comments.

Return ONLY valid JSON:
{"structureScore": 85, "insightScore": 80, "communicationScore": 75, "bodyLanguageScore": 70, "comments": ["..."]}`

type Grader struct {
	LLM llm.Provider
	Log *logrus.Logger
}

func orNone(items []string, none string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}

func (g *Grader) Grade(ctx context.Context, transcript string, mm models.MindmapAnalysis, bl models.BodyLanguage, frameworkName string) models.GradingResult {
	if g.LLM == nil {
		return FallbackGrading(transcript, bl)
	}

	prompt := fmt.Sprintf(gradingPrompt, frameworkName, transcript,
		orNone(mm.Delta.Missing, "None identified"),
		orNone(mm.Delta.Misprioritized, "None"),
		orNone(mm.Delta.Redundant, "None"),
		mm.FixSummary, bodyLanguageSummary(bl))

	answer, err := llm.Complete(ctx, g.LLM, prompt)
	if err != nil {
		g.logger().WithError(err).Warn("grading llm call failed")
		return FallbackGrading(transcript, bl)
	}
	raw, ok := ExtractJSON(answer)
	if !ok {
		g.logger().Warn("grading answer has no JSON")
		return FallbackGrading(transcript, bl)
	}
	var res models.GradingResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		g.logger().WithError(err).Warn("grading answer unusable")
		return FallbackGrading(transcript, bl)
	}

	if res.StructureScore == 0 {
		res.StructureScore = 70
	}
	if res.InsightScore == 0 {
		res.InsightScore = 70
	}
	if res.CommunicationScore == 0 {
		res.CommunicationScore = 70
	}
	if res.BodyLanguageScore == 0 {
		res.BodyLanguageScore = bodyLanguageScore(bl)
	}
	if len(res.Comments) == 0 {
		res.Comments = []string{"Good response overall"}
	}
	res.StructureScore = clamp(res.StructureScore, 0, 100)
	res.InsightScore = clamp(res.InsightScore, 0, 100)
	res.CommunicationScore = clamp(res.CommunicationScore, 0, 100)
	res.BodyLanguageScore = clamp(res.BodyLanguageScore, 0, 100)
	return res
}

func (g *Grader) logger() *logrus.Logger {
	if g.Log == nil {
		return logrus.StandardLogger()
	}
	return g.Log
}

func bodyLanguageScore(bl models.BodyLanguage) int {
	return int(math.Round((bl.Warmth + bl.Competence + bl.EyeContactRatio) / 3 * 100))
}

// FallbackGrading scores on length and structural cue words; each score is in [40,100].
func FallbackGrading(transcript string, bl models.BodyLanguage) models.GradingResult {
	n := len(strings.TrimSpace(transcript))
	lower := strings.ToLower(transcript)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	structure, insight, communication := 60, 60, 60
	if n > 100 {
		structure += 15
	}
	if has("first", "second") {
		structure += 10
	}
	if has("framework", "structure") {
		structure += 10
	}
	if n > 150 {
		insight += 10
	}
	if has("because", "reason") {
		insight += 10
	}
	if has("analyze", "consider") {
		insight += 10
	}
	if n > 80 {
		communication += 10
	}
	if len(strings.Split(transcript, ".")) > 3 {
		communication += 10
	}

	var comments []string
	if n > 100 {
		comments = append(comments, "Provided a substantial response")
	} else {
		comments = append(comments, "Response was brief, consider adding more detail")
	}
	if bl.Warmth > 0.7 {
		comments = append(comments, "Demonstrated good warmth and engagement")
	} else {
		comments = append(comments, "Work on showing more warmth and approachability")
	}
	if bl.Competence > 0.7 {
		comments = append(comments, "Conveyed confidence and competence")
	} else {
		comments = append(comments, "Build more confidence in your delivery")
	}
	comments = append(comments, "Continue practicing to refine your approach")

	return models.GradingResult{
		StructureScore:     clamp(structure, 40, 100),
		InsightScore:       clamp(insight, 40, 100),
		CommunicationScore: clamp(communication, 40, 100),
		BodyLanguageScore:  bodyLanguageScore(bl),
		Comments:           comments,
	}
}
