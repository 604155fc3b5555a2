package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/providers/llm"
)

const mindmapPrompt = `You are a consulting interview coach. You extract mental models from candidate
interview answers, compare them against ideal frameworks, and output ONLY structured JSON.

Return ONLY valid JSON per this schema:
{
  "your_model": {"tree": {"<string>": ["<string>", "..."]}},
  "ideal_model": {"tree": {"<string>": ["<string>", "..."]}},
  "delta": {"missing": ["..."], "misprioritized": ["..."], "redundant": ["..."]},
  "fix_summary": "<string>"
}

Transcript:
%s

Framework name: %s
Framework tree:
%s

Body language scores:
%s

Extract the candidate's mental model tree from the transcript, restate the ideal tree exactly
as provided, list missing, misprioritized and redundant components, and write a concise
one-minute fix. No prose, no explanation.`

type Mindmapper struct {
	LLM llm.Provider
	Log *logrus.Logger
}

func (m *Mindmapper) Analyze(ctx context.Context, transcript string, fw *Framework, bl models.BodyLanguage) models.MindmapAnalysis {
	if m.LLM == nil {
		return FallbackMindmap(transcript, fw)
	}

	tree, _ := json.MarshalIndent(fw.Tree(), "", "  ")
	body, _ := json.MarshalIndent(bl, "", "  ")
	answer, err := llm.Complete(ctx, m.LLM, fmt.Sprintf(mindmapPrompt, transcript, fw.Name, tree, body))
	if err != nil {
		m.logger().WithError(err).WithField("framework", fw.ID).Warn("mindmap llm call failed")
		return FallbackMindmap(transcript, fw)
	}

	out, err := parseMindmap(answer, fw)
	if err != nil {
		m.logger().WithError(err).WithField("framework", fw.ID).Warn("mindmap answer unusable")
		return FallbackMindmap(transcript, fw)
	}
	return out
}

func (m *Mindmapper) logger() *logrus.Logger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}

func parseMindmap(answer string, fw *Framework) (models.MindmapAnalysis, error) {
	raw, ok := ExtractJSON(answer)
	if !ok {
		return models.MindmapAnalysis{}, fmt.Errorf("no JSON object in answer")
	}
	var doc struct {
		YourModel struct {
			Tree models.MindmapTree `json:"tree"`
		} `json:"your_model"`
		IdealModel struct {
			Tree models.MindmapTree `json:"tree"`
		} `json:"ideal_model"`
		Delta      models.MindmapDelta `json:"delta"`
		FixSummary string              `json:"fix_summary"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.MindmapAnalysis{}, err
	}
	if len(doc.YourModel.Tree) == 0 {
		return models.MindmapAnalysis{}, fmt.Errorf("candidate tree is empty")
	}

	out := models.MindmapAnalysis{
		YourModel:  doc.YourModel.Tree,
		IdealModel: doc.IdealModel.Tree,
		Delta:      doc.Delta,
		FixSummary: doc.FixSummary,
	}
	if len(out.IdealModel) == 0 {
		out.IdealModel = fw.Tree()
	}
	if out.Delta.Missing == nil {
		out.Delta.Missing = []string{}
	}
	if out.Delta.Misprioritized == nil {
		out.Delta.Misprioritized = []string{}
	}
	if out.Delta.Redundant == nil {
		out.Delta.Redundant = []string{}
	}
	if out.FixSummary == "" {
		out.FixSummary = "Analysis generated successfully."
	}
	return out, nil
}

// FallbackMindmap builds the candidate tree from framework concepts the
// transcript mentions and lists the rest as missing. A mentioned child pulls
// its parent into the tree.
func FallbackMindmap(transcript string, fw *Framework) models.MindmapAnalysis {
	said := termSet(transcript)
	mentioned := map[string]bool{}
	for _, n := range fw.Nodes() {
		if mentions(said, n) {
			mentioned[n] = true
		}
	}

	yours := models.MindmapTree{}
	for _, b := range fw.Branches {
		kids := []string{}
		for _, c := range b.Children {
			if mentioned[c] {
				kids = append(kids, c)
			}
		}
		if mentioned[b.Node] || len(kids) > 0 {
			yours[b.Node] = kids
		}
	}
	if len(yours) == 0 {
		root := fw.Branches[0]
		n := len(root.Children)
		if n > 3 {
			n = 3
		}
		yours[root.Node] = append([]string{}, root.Children[:n]...)
	}

	covered := map[string]bool{}
	for parent, kids := range yours {
		covered[parent] = true
		for _, k := range kids {
			covered[k] = true
		}
	}
	all := fw.Nodes()
	missing := []string{}
	for _, n := range all {
		if !covered[n] {
			missing = append(missing, n)
		}
	}

	focus := missing
	if len(focus) > 3 {
		focus = focus[:3]
	}
	summary := fmt.Sprintf("You covered %d out of %d key concepts.", len(covered), len(all))
	if len(focus) > 0 {
		summary += " Focus on: " + strings.Join(focus, ", ")
	}

	return models.MindmapAnalysis{
		YourModel:  yours,
		IdealModel: fw.Tree(),
		Delta:      models.MindmapDelta{Missing: missing, Misprioritized: []string{}, Redundant: []string{}},
		FixSummary: summary,
	}
}
