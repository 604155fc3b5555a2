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

func bodyLanguageSummary(bl models.BodyLanguage) string {
	pct := func(v float64) int { return int(math.Round(v * 100)) }
	return fmt.Sprintf(`- Warmth: %d%%
- Competence: %d%%
- Affect: %d%%
- Eye Contact: %d%%
- Gesture Intensity: %d%%
- Posture Stability: %d%%`,
		pct(bl.Warmth), pct(bl.Competence), pct(bl.Affect),
		pct(bl.EyeContactRatio), pct(bl.GestureIntensity), pct(bl.PostureStability))
}

const feedbackPrompt = `You are an expert interview coach analyzing a practice interview response.

**Question %d Response:**
%q

**Body Language Metrics:**
%s

Provide detailed, actionable feedback in this JSON format:
{
  "strengths": ["strength1", "strength2", "strength3"],
  "areasForImprovement": ["area1", "area2", "area3"],
  "overallScore": 85,
  "detailedFeedback": "2-3 sentences of overall feedback",
  "suggestions": ["suggestion1", "suggestion2", "suggestion3"]
}

Focus on content quality and clarity, communication effectiveness, body language
alignment with the message, and what to improve for the next practice.

Return ONLY valid JSON, no other text.`

// FeedbackGenerator asks the LLM for coaching feedback and falls back to
// HeuristicFeedback when there is no LLM or its answer is unusable.
type FeedbackGenerator struct {
	LLM llm.Provider
	Log *logrus.Logger
}

func (g *FeedbackGenerator) Generate(ctx context.Context, transcript string, bl models.BodyLanguage, questionIndex int) (*models.Feedback, error) {
	if g.LLM == nil {
		return HeuristicFeedback(transcript, bl), nil
	}

	prompt := fmt.Sprintf(feedbackPrompt, questionIndex, transcript, bodyLanguageSummary(bl))
	answer, err := llm.Complete(ctx, g.LLM, prompt)
	if err != nil {
		g.logger().WithError(err).WithField("question_index", questionIndex).Warn("feedback llm call failed")
		return HeuristicFeedback(transcript, bl), nil
	}

	fb, err := parseFeedback(answer)
	if err != nil {
		g.logger().WithError(err).WithField("question_index", questionIndex).Warn("feedback answer unusable")
		return HeuristicFeedback(transcript, bl), nil
	}
	return fb, nil
}

func (g *FeedbackGenerator) logger() *logrus.Logger {
	if g.Log == nil {
		return logrus.StandardLogger()
	}
	return g.Log
}

func parseFeedback(answer string) (*models.Feedback, error) {
	raw, ok := ExtractJSON(answer)
	if !ok {
		return nil, fmt.Errorf("no JSON object in answer")
	}
	var fb models.Feedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		return nil, err
	}
	if len(fb.Strengths) == 0 && len(fb.Improvements) == 0 {
		return nil, fmt.Errorf("feedback has no content")
	}
	if fb.OverallScore == 0 {
		fb.OverallScore = 75
	}
	fb.OverallScore = clamp(fb.OverallScore, 0, 100)
	if strings.TrimSpace(fb.Narrative) == "" {
		fb.Narrative = "Good response overall."
	}
	if len(fb.Suggestions) == 0 {
		fb.Suggestions = []string{"Continue practicing to refine your delivery"}
	}
	if len(fb.Improvements) == 0 {
		fb.Improvements = []string{"Keep practicing to improve"}
	}
	if len(fb.Strengths) == 0 {
		fb.Strengths = []string{"Completed the response"}
	}
	return &fb, nil
}

// HeuristicFeedback scores length and body language. Lists are never empty
// and the score stays within [40,100].
func HeuristicFeedback(transcript string, bl models.BodyLanguage) *models.Feedback {
	n := len(strings.TrimSpace(transcript))
	lower := strings.ToLower(transcript)

	score := 50
	switch {
	case n > 100:
		score += 15
	case n > 50:
		score += 10
	case n > 20:
		score += 5
	}
	score += int(math.Round(bl.Mean() * 25))
	score = clamp(score, 40, 100)

	var strengths, improvements, suggestions []string
	if n > 50 {
		strengths = append(strengths, "Provided a substantial response")
	} else {
		improvements = append(improvements, "Response was too brief, try to elaborate more")
	}
	if strings.Contains(lower, "i think") || strings.Contains(lower, "i believe") {
		strengths = append(strengths, "Used personal perspective effectively")
	}
	if n < 30 {
		improvements = append(improvements, "Add more detail and examples to your answer")
		suggestions = append(suggestions, "Practice expanding on your points with specific examples")
	}

	switch {
	case bl.Warmth > 0.7:
		strengths = append(strengths, "Demonstrated good warmth and approachability")
	case bl.Warmth < 0.5:
		improvements = append(improvements, "Work on showing more warmth and engagement")
		suggestions = append(suggestions, "Practice maintaining eye contact and using friendly gestures")
	}
	switch {
	case bl.Competence > 0.7:
		strengths = append(strengths, "Conveyed confidence and competence")
	case bl.Competence < 0.5:
		improvements = append(improvements, "Build more confidence in your delivery")
		suggestions = append(suggestions, "Practice speaking with more authority and clarity")
	}
	if bl.EyeContactRatio < 0.5 {
		improvements = append(improvements, "Improve eye contact during responses")
		suggestions = append(suggestions, "Practice looking at the camera more consistently")
	}

	if len(suggestions) == 0 {
		suggestions = []string{"Continue practicing to refine your delivery", "Record yourself to identify areas for improvement"}
	}
	if len(strengths) == 0 {
		strengths = []string{"Completed the response"}
	}
	if len(improvements) == 0 {
		improvements = []string{"Keep practicing to improve"}
	}

	var narrative string
	switch {
	case score >= 75:
		narrative = "Good response overall. You communicated clearly and kept steady body language. Keep practicing to refine your delivery."
	case score >= 60:
		narrative = "Decent response. The main points are there, but the answer needs more depth and more specific examples, and your delivery can be steadier."
	default:
		narrative = "This answer needs work. Give more detailed answers with specific examples and project more confidence and engagement."
	}

	return &models.Feedback{
		Strengths:    strengths,
		Improvements: improvements,
		OverallScore: score,
		Narrative:    narrative,
		Suggestions:  suggestions,
	}
}
