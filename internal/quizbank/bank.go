// Package quizbank loads the quiz question bank the trait profile builder
// scores against. The bank ships embedded so the engine works out of the
// box; deployments override it with QUIZ_BANK_PATH to retune questions
// without a rebuild.
package quizbank

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_bank.yaml
var defaultBankYAML []byte

type Option struct {
	ID            string             `yaml:"id"`
	Label         string             `yaml:"label"`
	Contributions map[string]float64 `yaml:"contributions"`
}

type Question struct {
	ID         string   `yaml:"id"`
	Prompt     string   `yaml:"prompt"`
	Importance float64  `yaml:"importance"`
	MinSelect  int      `yaml:"min_select"`
	MaxSelect  int      `yaml:"max_select"`
	Options    []Option `yaml:"options"`
}

type Bank struct {
	Version           string     `yaml:"version"`
	Scale             float64    `yaml:"scale"`
	SalienceThreshold float64    `yaml:"salience_threshold"`
	MaxDominantTags   int        `yaml:"max_dominant_tags"`
	ConfidenceFloor   float64    `yaml:"confidence_floor"`
	Questions         []Question `yaml:"questions"`

	byID map[string]int
}

// Load reads a bank from path, or the embedded default when path is empty.
func Load(path string) (*Bank, error) {
	raw := defaultBankYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read quiz bank %s: %w", path, err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("parse quiz bank: %w", err)
	}
	if err := bank.validate(); err != nil {
		return nil, err
	}
	bank.byID = make(map[string]int, len(bank.Questions))
	for i := range bank.Questions {
		bank.byID[bank.Questions[i].ID] = i
	}
	return &bank, nil
}

func (b *Bank) validate() error {
	if b.Version == "" {
		return fmt.Errorf("quiz bank missing version")
	}
	if len(b.Questions) == 0 {
		return fmt.Errorf("quiz bank %s has no questions", b.Version)
	}
	if b.Scale <= 0 {
		b.Scale = 1.5
	}
	if b.SalienceThreshold <= 0 {
		b.SalienceThreshold = 0.35
	}
	if b.MaxDominantTags <= 0 {
		b.MaxDominantTags = 3
	}
	if b.ConfidenceFloor <= 0 {
		b.ConfidenceFloor = 0.45
	}
	seen := map[string]bool{}
	for i := range b.Questions {
		q := &b.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("question %d missing id", i)
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true
		if q.Importance <= 0 {
			q.Importance = 1.0
		}
		if q.MinSelect <= 0 {
			q.MinSelect = 1
		}
		if q.MaxSelect < q.MinSelect {
			q.MaxSelect = q.MinSelect
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s has no options", q.ID)
		}
		optSeen := map[string]bool{}
		for _, opt := range q.Options {
			if opt.ID == "" {
				return fmt.Errorf("question %s has an option without id", q.ID)
			}
			if optSeen[opt.ID] {
				return fmt.Errorf("question %s has duplicate option id %s", q.ID, opt.ID)
			}
			optSeen[opt.ID] = true
			if len(opt.Contributions) == 0 {
				return fmt.Errorf("option %s/%s contributes to no dimensions", q.ID, opt.ID)
			}
		}
	}
	return nil
}

// Question returns the question and its position in asked order.
func (b *Bank) Question(id string) (*Question, int, bool) {
	i, ok := b.byID[id]
	if !ok {
		return nil, 0, false
	}
	return &b.Questions[i], i, true
}

func (q *Question) Option(id string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// Dimensions returns every trait dimension any option can contribute to.
func (b *Bank) Dimensions() []string {
	set := map[string]bool{}
	var dims []string
	for _, q := range b.Questions {
		for _, opt := range q.Options {
			for dim := range opt.Contributions {
				if !set[dim] {
					set[dim] = true
					dims = append(dims, dim)
				}
			}
		}
	}
	return dims
}
