package analysis

import (
	"context"
	"strings"

	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
)

// Analyzer runs framework match, mind map and grading for one answer.
type Analyzer struct {
	Catalog  *Catalog
	Matcher  *Matcher
	Mindmap  *Mindmapper
	Grader   *Grader
	Feedback *FeedbackGenerator
}

func (a *Analyzer) Analyze(ctx context.Context, sessionID string, questionIndex int, transcript string, bl models.BodyLanguage) (*models.QuestionResult, error) {
	const op = "Analyzer.Analyze"

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript is required for analysis", nil)
	}

	match := a.Matcher.Match(ctx, transcript)
	fw, ok := a.Catalog.Get(match.ID)
	if !ok {
		return nil, utils.E(utils.CodeInternal, op, "matched framework missing from catalog", nil)
	}
	mm := a.Mindmap.Analyze(ctx, transcript, fw, bl)
	grade := a.Grader.Grade(ctx, transcript, mm, bl, fw.Name)

	blCopy := bl
	return &models.QuestionResult{
		SessionID:      sessionID,
		QuestionIndex:  questionIndex,
		Transcript:     transcript,
		FrameworkMatch: match,
		Mindmap:        mm,
		Grading:        grade,
		BodyLanguage:   &blCopy,
	}, nil
}
