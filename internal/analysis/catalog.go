// Package analysis grades a transcribed answer: framework matching, mind-map
// comparison, scores and coaching feedback. Every LLM-backed step has a
// deterministic fallback.
package analysis

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/casecoach/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed frameworks.yaml
var defaultCatalog []byte

type Branch struct {
	Node     string   `yaml:"node"`
	Children []string `yaml:"children"`
}

type Framework struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Domain      string   `yaml:"domain"`
	Category    string   `yaml:"category"`
	Source      string   `yaml:"source"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Branches    []Branch `yaml:"tree"`
}

func (f *Framework) Tree() models.MindmapTree {
	t := make(models.MindmapTree, len(f.Branches))
	for _, b := range f.Branches {
		t[b.Node] = append([]string(nil), b.Children...)
	}
	return t
}

// Nodes lists every concept of the tree once, parents before children.
func (f *Framework) Nodes() []string {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, b := range f.Branches {
		add(b.Node)
		for _, c := range b.Children {
			add(c)
		}
	}
	return out
}

// EmbeddingText is what gets embedded to represent the framework.
func (f *Framework) EmbeddingText() string {
	return fmt.Sprintf("%s %s %s %s", f.Name, f.Description, strings.Join(f.Tags, ","), strings.Join(f.Nodes(), ","))
}

func (f *Framework) category() string {
	if f.Category == "case_type" {
		return "case_type"
	}
	return "skill"
}

type Catalog struct {
	frameworks []Framework
}

func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Frameworks []Framework `yaml:"frameworks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse framework catalog: %w", err)
	}
	if len(doc.Frameworks) == 0 {
		return nil, errors.New("framework catalog is empty")
	}
	seen := map[string]bool{}
	for _, f := range doc.Frameworks {
		if f.ID == "" || len(f.Branches) == 0 {
			return nil, fmt.Errorf("framework %q needs an id and a tree", f.Name)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("duplicate framework id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return &Catalog{frameworks: doc.Frameworks}, nil
}

func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalog)
}

func (c *Catalog) All() []Framework { return c.frameworks }

func (c *Catalog) First() *Framework { return &c.frameworks[0] }

func (c *Catalog) Get(id string) (*Framework, bool) {
	for i := range c.frameworks {
		if c.frameworks[i].ID == id {
			return &c.frameworks[i], true
		}
	}
	return nil, false
}
