package attribution

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/attribution-cli/internal/model"
)

// Policy holds every confidence number the engine assigns.
type Policy struct {
	// BaseConfidence is the confidence of a row attributed from direct
	// evidence, per signal type.
	BaseConfidence map[model.SignalType]int `yaml:"base_confidence"`

	// Probabilistic rows start at ProbabilisticBase, or ProbabilisticWithSpend
	// when platform spend corroborates the channel, gain FunnelBoost when the
	// channel reached a funnel stage, and never exceed ProbabilisticCap.
	ProbabilisticBase      int `yaml:"probabilistic_base"`
	ProbabilisticWithSpend int `yaml:"probabilistic_with_spend"`
	FunnelBoost            int `yaml:"funnel_boost"`
	ProbabilisticCap       int `yaml:"probabilistic_cap"`

	// ExposureOnly is the confidence of a channel with sessions but no
	// conversions to distribute.
	ExposureOnly int `yaml:"exposure_only"`

	// RemainderTolerance is the smallest leftover that gets an
	// unattributed row.
	RemainderTolerance float64 `yaml:"remainder_tolerance"`
}

// DefaultPolicy returns the standard confidence table.
func DefaultPolicy() Policy {
	return Policy{
		BaseConfidence: map[model.SignalType]int{
			model.SignalClickID:      98,
			model.SignalUTMWithSpend: 95,
			model.SignalUTMNoSpend:   90,
			model.SignalUTMOnly:      85,
			model.SignalPlatformOnly: 70,
			model.SignalDirect:       0,
		},
		ProbabilisticBase:      70,
		ProbabilisticWithSpend: 75,
		FunnelBoost:            5,
		ProbabilisticCap:       80,
		ExposureOnly:           50,
		RemainderTolerance:     0.01,
	}
}

// LoadPolicy reads a policy YAML file. Keys absent from the file keep their
// DefaultPolicy values. The result is validated.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "attribution: read policy %s", path)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes policy YAML over DefaultPolicy and validates it. The
// document may be bare or nested under a top-level "policy" key.
func ParsePolicy(data []byte) (Policy, error) {
	var wrapper struct {
		Policy *policyFile `yaml:"policy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Policy{}, eris.Wrap(err, "attribution: parse policy")
	}
	file := wrapper.Policy
	if file == nil {
		file = &policyFile{}
		if err := yaml.Unmarshal(data, file); err != nil {
			return Policy{}, eris.Wrap(err, "attribution: parse policy")
		}
	}

	p := DefaultPolicy()
	for k, v := range file.BaseConfidence {
		if model.SignalType(k).Rank() < 0 {
			return Policy{}, eris.Errorf("attribution: unknown signal type %q in policy", k)
		}
		p.BaseConfidence[model.SignalType(k)] = v
	}
	setInt(&p.ProbabilisticBase, file.ProbabilisticBase)
	setInt(&p.ProbabilisticWithSpend, file.ProbabilisticWithSpend)
	setInt(&p.FunnelBoost, file.FunnelBoost)
	setInt(&p.ProbabilisticCap, file.ProbabilisticCap)
	setInt(&p.ExposureOnly, file.ExposureOnly)
	if file.RemainderTolerance != nil {
		p.RemainderTolerance = *file.RemainderTolerance
	}

	if err := ValidatePolicy(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// policyFile mirrors Policy with optional fields so zero values in YAML are
// distinguishable from omitted keys.
type policyFile struct {
	BaseConfidence         map[string]int `yaml:"base_confidence"`
	ProbabilisticBase      *int           `yaml:"probabilistic_base"`
	ProbabilisticWithSpend *int           `yaml:"probabilistic_with_spend"`
	FunnelBoost            *int           `yaml:"funnel_boost"`
	ProbabilisticCap       *int           `yaml:"probabilistic_cap"`
	ExposureOnly           *int           `yaml:"exposure_only"`
	RemainderTolerance     *float64       `yaml:"remainder_tolerance"`
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// ValidatePolicy checks that base confidences exist for every signal type,
// lie within 0..100 and never increase down the signal hierarchy.
func ValidatePolicy(p Policy) error {
	var errs []string

	prev := 101
	var prevType model.SignalType
	for _, st := range model.SignalTypes {
		c, ok := p.BaseConfidence[st]
		if !ok {
			errs = append(errs, fmt.Sprintf("base_confidence.%s is required", st))
			continue
		}
		if c < 0 || c > 100 {
			errs = append(errs, fmt.Sprintf("base_confidence.%s must be between 0 and 100", st))
		}
		if prevType != "" && c > prev {
			errs = append(errs, fmt.Sprintf("base_confidence.%s (%d) must be <= base_confidence.%s (%d)", st, c, prevType, prev))
		}
		prev, prevType = c, st
	}

	inRange := map[string]int{
		"probabilistic_base":       p.ProbabilisticBase,
		"probabilistic_with_spend": p.ProbabilisticWithSpend,
		"probabilistic_cap":        p.ProbabilisticCap,
		"exposure_only":            p.ExposureOnly,
	}
	for _, name := range []string{"probabilistic_base", "probabilistic_with_spend", "probabilistic_cap", "exposure_only"} {
		if v := inRange[name]; v < 0 || v > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 100", name))
		}
	}
	if p.FunnelBoost < 0 {
		errs = append(errs, "funnel_boost must be >= 0")
	}
	if p.ProbabilisticCap < p.ProbabilisticWithSpend || p.ProbabilisticCap < p.ProbabilisticBase {
		errs = append(errs, "probabilistic_cap must be >= probabilistic_base and probabilistic_with_spend")
	}
	if p.RemainderTolerance <= 0 {
		errs = append(errs, "remainder_tolerance must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("attribution: policy validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Base returns the base confidence for t.
func (p Policy) Base(t model.SignalType) int {
	return p.BaseConfidence[t]
}

// probabilisticConfidence scores a funnel-weighted estimate.
func (p Policy) probabilisticConfidence(hasSpend, reachedFunnel bool) int {
	c := p.ProbabilisticBase
	if hasSpend {
		c = p.ProbabilisticWithSpend
	}
	if reachedFunnel {
		c += p.FunnelBoost
	}
	return min(c, p.ProbabilisticCap)
}
