package group

import (
	"os"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// Satisfaction level labels, most to least satisfied.
const (
	LevelVerySatisfied    = "매우 만족"
	LevelSatisfied        = "만족"
	LevelNeutral          = "보통"
	LevelDissatisfied     = "불만"
	LevelVeryDissatisfied = "매우 불만"
)

// Leveler maps a member's probability and confidence to a satisfaction label.
type Leveler interface {
	Level(probability, confidence float64) string
}

// ThresholdLeveler labels by fixed probability boundaries. Each field is the
// inclusive lower bound of its level; anything below Dissatisfied is
// "매우 불만".
type ThresholdLeveler struct {
	VerySatisfied float64 `mapstructure:"very_satisfied"`
	Satisfied     float64 `mapstructure:"satisfied"`
	Neutral       float64 `mapstructure:"neutral"`
	Dissatisfied  float64 `mapstructure:"dissatisfied"`
}

// DefaultThresholds returns the standard level boundaries.
func DefaultThresholds() ThresholdLeveler {
	return ThresholdLeveler{
		VerySatisfied: 0.85,
		Satisfied:     0.70,
		Neutral:       0.50,
		Dissatisfied:  0.30,
	}
}

// Level implements Leveler.
func (t ThresholdLeveler) Level(probability, _ float64) string {
	switch {
	case probability >= t.VerySatisfied:
		return LevelVerySatisfied
	case probability >= t.Satisfied:
		return LevelSatisfied
	case probability >= t.Neutral:
		return LevelNeutral
	case probability >= t.Dissatisfied:
		return LevelDissatisfied
	default:
		return LevelVeryDissatisfied
	}
}

// LevelRule labels members by a CEL condition over their match result.
// The When expression sees `probability` and `confidence` as doubles and must
// return a boolean; the first matching rule in declaration order wins.
type LevelRule struct {
	// When is the CEL condition, e.g. "probability >= 0.85".
	When string `yaml:"when"`
	// Level is the label assigned when the condition holds.
	Level string `yaml:"level"`

	program cel.Program
}

// NewLevelEnv creates the CEL environment shared by all level rules.
func NewLevelEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("confidence", cel.DoubleType),
	)
}

// Init compiles the When expression against env.
func (r *LevelRule) Init(env *cel.Env) error {
	ast, iss := env.Parse(r.When)
	if iss.Err() != nil {
		return iss.Err()
	}
	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return iss.Err()
	}
	var err error
	r.program, err = env.Program(checked)
	return err
}

// Eval runs the compiled condition. Evaluation errors count as no match so a
// single bad rule cannot break member labeling.
func (r *LevelRule) Eval(probability, confidence float64) bool {
	result, _, err := r.program.Eval(map[string]any{
		"probability": probability,
		"confidence":  confidence,
	})
	if err != nil {
		return false
	}
	return result.Value() == true
}

// RuleLeveler labels members by an ordered rule list; when no rule matches,
// Fallback is used.
type RuleLeveler struct {
	Rules    []LevelRule
	Fallback string
}

// Level implements Leveler.
func (rl *RuleLeveler) Level(probability, confidence float64) string {
	for i := range rl.Rules {
		if rl.Rules[i].Eval(probability, confidence) {
			return rl.Rules[i].Level
		}
	}
	return rl.Fallback
}

// ParseLevelRules parses and compiles a YAML rule list of the form:
//
//   - when: "probability >= 0.85"
//     level: "매우 만족"
func ParseLevelRules(content []byte) (*RuleLeveler, error) {
	rules := []LevelRule{}
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return nil, err
	}

	env, err := NewLevelEnv()
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if err := rules[i].Init(env); err != nil {
			return nil, err
		}
	}
	return &RuleLeveler{Rules: rules, Fallback: LevelVeryDissatisfied}, nil
}

// LoadLevelRules reads and compiles a YAML rule file.
func LoadLevelRules(file string) (*RuleLeveler, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return ParseLevelRules(content)
}
