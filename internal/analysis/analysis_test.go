package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/casecoach/internal/logger"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
)

type scriptedLLM struct {
	answer string
	err    error
	calls  int
}

func (s *scriptedLLM) StreamAnswer(_ context.Context, _ string) (<-chan string, <-chan error) {
	s.calls++
	out := make(chan string, 1)
	errs := make(chan error, 1)
	if s.err != nil {
		errs <- s.err
	} else {
		out <- s.answer
	}
	close(out)
	close(errs)
	return out, errs
}

func (*scriptedLLM) Close() error { return nil }

type keywordEmbedder struct {
	err   error
	calls int
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case strings.HasPrefix(text, "Market Entry Framework"):
		return []float32{0, 1, 0}, nil
	case strings.HasPrefix(text, "Candidate"):
		return []float32{0, 0.9, 0.1}, nil
	}
	return []float32{1, 0, 0}, nil
}

var steady = models.BodyLanguage{Warmth: 0.8, Competence: 0.75, Affect: 0.6, EyeContactRatio: 0.7, GestureIntensity: 0.4, PostureStability: 0.9}

func catalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	return c
}

func quiet() *logrus.Logger { return logger.Discard() }

func TestDefaultCatalog(t *testing.T) {
	c := catalog(t)
	assert.Len(t, c.All(), 5)
	assert.Equal(t, "profitability", c.First().ID)

	fw, ok := c.Get("market_entry")
	require.True(t, ok)
	assert.Equal(t, []string{"Market Attractiveness", "Competitive Landscape", "Company Capabilities"}, fw.Tree()["Market Entry"])
	assert.Equal(t, "Market Entry", fw.Nodes()[0])
	assert.Len(t, fw.Nodes(), 13)

	_, ok = c.Get("nope")
	assert.False(t, ok)
}

func TestLoadCatalogRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "frameworks: []", "empty"},
		{"no tree", "frameworks:\n  - id: a\n    name: A\n", "needs an id and a tree"},
		{"duplicate", "frameworks:\n  - id: a\n    tree: [{node: X}]\n  - id: a\n    tree: [{node: Y}]\n", "duplicate"},
		{"not yaml", "frameworks: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, ok := ExtractJSON("Sure!\n```json\n{\"a\": {\"b\": 1}}\n```\nthanks")
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, ok = ExtractJSON("no json here")
	assert.False(t, ok)
}

func TestMatcherByTerms(t *testing.T) {
	m := NewMatcher(catalog(t), nil, quiet())

	got := m.Match(context.Background(), "We should analyze market size and competition.")
	assert.Equal(t, "market_entry", got.ID)
	assert.Equal(t, "case_type", got.Category)
	assert.InDelta(t, 0.6, got.Score, 1e-9)

	fallback := m.Match(context.Background(), "Hello, nice to meet you.")
	assert.Equal(t, "profitability", fallback.ID)
	assert.Equal(t, 0.5, fallback.Score)
}

func TestMatcherByEmbedding(t *testing.T) {
	e := &keywordEmbedder{}
	m := NewMatcher(catalog(t), e, quiet())

	got := m.Match(context.Background(), "Should the client enter Brazil?")
	assert.Equal(t, "market_entry", got.ID)
	assert.Greater(t, got.Score, 0.9)

	m.Match(context.Background(), "again")
	assert.Equal(t, 5+2, e.calls, "frameworks are embedded once")
}

func TestMatcherEmbeddingFailureUsesTerms(t *testing.T) {
	m := NewMatcher(catalog(t), &keywordEmbedder{err: errors.New("quota")}, quiet())
	got := m.Match(context.Background(), "We should analyze market size and competition.")
	assert.Equal(t, "market_entry", got.ID)
}

func TestMatcherRetriesWarmUpAfterFailure(t *testing.T) {
	e := &keywordEmbedder{err: errors.New("quota")}
	m := NewMatcher(catalog(t), e, quiet())

	require.Error(t, m.Warm(context.Background()))
	got := m.Match(context.Background(), "Should the client enter Brazil?")
	assert.Equal(t, 0.5, got.Score)

	e.err = nil
	got = m.Match(context.Background(), "Should the client enter Brazil?")
	assert.Equal(t, "market_entry", got.ID)
	assert.Greater(t, got.Score, 0.9)
}

func TestMatcherWarmUpIgnoresRequestCancellation(t *testing.T) {
	e := &keywordEmbedder{}
	m := NewMatcher(catalog(t), e, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Warm(ctx))
	assert.Equal(t, 5, e.calls)

	got := m.Match(context.Background(), "Should the client enter Brazil?")
	assert.Equal(t, "market_entry", got.ID)
	assert.Equal(t, 5+1, e.calls, "framework vectors are reused")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestFallbackMindmap(t *testing.T) {
	fw, _ := catalog(t).Get("market_entry")

	mm := FallbackMindmap("We should analyze market size and competition.", fw)
	assert.Equal(t, models.MindmapTree{"Market Attractiveness": {"Market Size"}}, mm.YourModel)
	assert.Equal(t, fw.Tree(), mm.IdealModel)
	assert.Len(t, mm.Delta.Missing, 11)
	assert.NotContains(t, mm.Delta.Missing, "Market Size")
	assert.Equal(t, "You covered 2 out of 13 key concepts. Focus on: Market Entry, Competitive Landscape, Company Capabilities", mm.FixSummary)

	blank := FallbackMindmap("um", fw)
	assert.Equal(t, models.MindmapTree{"Market Entry": {"Market Attractiveness", "Competitive Landscape", "Company Capabilities"}}, blank.YourModel)
	assert.Empty(t, blank.Delta.Redundant)
}

func TestMindmapperParsesLLMAnswer(t *testing.T) {
	fw, _ := catalog(t).Get("market_entry")
	ans := "```json\n" + `{"your_model":{"tree":{"Market":["Size"]}},"delta":{"missing":["Barriers to Entry"]},"fix_summary":"Cover barriers."}` + "\n```"
	m := &Mindmapper{LLM: &scriptedLLM{answer: ans}, Log: quiet()}

	mm := m.Analyze(context.Background(), "market size", fw, steady)
	assert.Equal(t, models.MindmapTree{"Market": {"Size"}}, mm.YourModel)
	assert.Equal(t, fw.Tree(), mm.IdealModel)
	assert.Equal(t, []string{"Barriers to Entry"}, mm.Delta.Missing)
	assert.Equal(t, []string{}, mm.Delta.Redundant)
	assert.Equal(t, "Cover barriers.", mm.FixSummary)
}

func TestMindmapperFallsBack(t *testing.T) {
	fw, _ := catalog(t).Get("market_entry")
	for _, p := range []*scriptedLLM{{err: errors.New("down")}, {answer: "I cannot help"}, {answer: `{"your_model":{"tree":{}}}`}} {
		m := &Mindmapper{LLM: p, Log: quiet()}
		mm := m.Analyze(context.Background(), "market size", fw, steady)
		assert.Equal(t, FallbackMindmap("market size", fw), mm)
	}
}

func TestFallbackGrading(t *testing.T) {
	long := "First, I would analyze the market because the framework needs a baseline. " +
		"Second, I would consider costs. Then revenue. Then risks. Finally a recommendation for the client."
	g := FallbackGrading(long, steady)
	assert.Equal(t, 95, g.StructureScore)
	assert.Equal(t, 90, g.InsightScore)
	assert.Equal(t, 80, g.CommunicationScore)
	assert.Equal(t, 75, g.BodyLanguageScore)
	assert.Len(t, g.Comments, 4)
	assert.Equal(t, "Provided a substantial response", g.Comments[0])

	short := FallbackGrading("ok", models.BodyLanguage{})
	assert.Equal(t, 60, short.StructureScore)
	assert.Equal(t, 0, short.BodyLanguageScore)
	assert.Contains(t, short.Comments, "Build more confidence in your delivery")
}

func TestGraderParsesAndClamps(t *testing.T) {
	g := &Grader{LLM: &scriptedLLM{answer: `{"structureScore": 140, "insightScore": 65, "comments": []}`}, Log: quiet()}
	res := g.Grade(context.Background(), "answer", models.MindmapAnalysis{}, steady, "Pricing Framework")
	assert.Equal(t, 100, res.StructureScore)
	assert.Equal(t, 65, res.InsightScore)
	assert.Equal(t, 70, res.CommunicationScore)
	assert.Equal(t, 75, res.BodyLanguageScore)
	assert.Equal(t, []string{"Good response overall"}, res.Comments)

	broken := &Grader{LLM: &scriptedLLM{answer: "{not json}"}, Log: quiet()}
	assert.Equal(t, FallbackGrading("answer", steady), broken.Grade(context.Background(), "answer", models.MindmapAnalysis{}, steady, "x"))
}

func TestHeuristicFeedback(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		bl         models.BodyLanguage
	}{
		{"empty and flat", "", models.BodyLanguage{}},
		{"short", "I think so.", models.BodyLanguage{Warmth: 0.6, Competence: 0.6, EyeContactRatio: 0.6}},
		{"long and confident", strings.Repeat("I believe the revenue dropped because of pricing. ", 4), models.BodyLanguage{Warmth: 1, Competence: 1, Affect: 1, EyeContactRatio: 1, GestureIntensity: 1, PostureStability: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := HeuristicFeedback(tt.transcript, tt.bl)
			assert.GreaterOrEqual(t, fb.OverallScore, 40)
			assert.LessOrEqual(t, fb.OverallScore, 100)
			assert.NotEmpty(t, fb.Strengths)
			assert.NotEmpty(t, fb.Improvements)
			assert.NotEmpty(t, fb.Suggestions)
			assert.NotEmpty(t, fb.Narrative)
		})
	}

	best := HeuristicFeedback(tests[2].transcript, tests[2].bl)
	assert.Equal(t, 90, best.OverallScore)
	assert.Contains(t, best.Strengths, "Used personal perspective effectively")
}

func TestFeedbackGenerator(t *testing.T) {
	ok := &FeedbackGenerator{LLM: &scriptedLLM{answer: `Here you go {"strengths":["clear"],"overallScore":120}`}, Log: quiet()}
	fb, err := ok.Generate(context.Background(), "answer", steady, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"clear"}, fb.Strengths)
	assert.Equal(t, 100, fb.OverallScore)
	assert.Equal(t, []string{"Keep practicing to improve"}, fb.Improvements)

	down := &FeedbackGenerator{LLM: &scriptedLLM{err: errors.New("503")}, Log: quiet()}
	fb, err = down.Generate(context.Background(), "answer", steady, 1)
	require.NoError(t, err)
	assert.Equal(t, HeuristicFeedback("answer", steady), fb)

	none := &FeedbackGenerator{}
	fb, err = none.Generate(context.Background(), "answer", steady, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, fb.Strengths)
}

func TestAnalyzer(t *testing.T) {
	c := catalog(t)
	a := &Analyzer{
		Catalog: c,
		Matcher: NewMatcher(c, nil, quiet()),
		Mindmap: &Mindmapper{Log: quiet()},
		Grader:  &Grader{Log: quiet()},
	}

	res, err := a.Analyze(context.Background(), "s1", 2, "  We should analyze market size and competition.  ", steady)
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, 2, res.QuestionIndex)
	assert.Equal(t, "We should analyze market size and competition.", res.Transcript)
	assert.Equal(t, "market_entry", res.FrameworkMatch.ID)
	assert.Equal(t, models.MindmapTree{"Market Attractiveness": {"Market Size"}}, res.Mindmap.YourModel)
	assert.Equal(t, 75, res.Grading.BodyLanguageScore)
	require.NotNil(t, res.BodyLanguage)

	_, err = a.Analyze(context.Background(), "s1", 2, "   ", steady)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
