package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "gmq/pkg/domain-errors"
)

// RetryPolicy overrides the backoff of one job class. Delays are seconds.
type RetryPolicy struct {
	Backoff       []int   `yaml:"backoff"`
	MinMultiplier float64 `yaml:"min_multiplier"`
	MaxMultiplier float64 `yaml:"max_multiplier"`
}

// Delays converts Backoff into durations.
func (p RetryPolicy) Delays() []time.Duration {
	out := make([]time.Duration, len(p.Backoff))
	for i, s := range p.Backoff {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

type retryFile struct {
	Default *RetryPolicy           `yaml:"default"`
	Classes map[string]RetryPolicy `yaml:"classes"`
}

// RetryPolicies holds the optional per-class overrides read from YAML.
type RetryPolicies struct {
	Default *RetryPolicy
	Classes map[string]RetryPolicy
}

// For returns the override for class, then the file default, then false.
func (r RetryPolicies) For(class string) (RetryPolicy, bool) {
	if p, ok := r.Classes[class]; ok {
		return p, true
	}
	if r.Default != nil {
		return *r.Default, true
	}
	return RetryPolicy{}, false
}

// LoadRetryPolicies reads the retry policy file. An empty path means no overrides.
//
//	default:
//	  backoff: [10, 60, 300]
//	  min_multiplier: 1.0
//	  max_multiplier: 2.0
//	classes:
//	  CertificateValidationWorker:
//	    backoff: [5, 10, 15, 20, 35]
func LoadRetryPolicies(path string) (RetryPolicies, error) {
	if path == "" {
		return RetryPolicies{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return RetryPolicies{}, dErrors.Wrap(err, dErrors.CodeConfiguration, "read retry policy file")
	}
	var f retryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return RetryPolicies{}, dErrors.Wrap(err, dErrors.CodeConfiguration, "parse retry policy file")
	}

	check := func(name string, p RetryPolicy) error {
		if len(p.Backoff) == 0 {
			return invalid(name, "backoff must not be empty")
		}
		for _, s := range p.Backoff {
			if s < 0 {
				return invalid(name, "backoff delays must not be negative")
			}
		}
		if p.MinMultiplier < 0 || (p.MaxMultiplier != 0 && p.MaxMultiplier < p.MinMultiplier) {
			return invalid(name, "multipliers must satisfy 0 <= min <= max")
		}
		return nil
	}
	if f.Default != nil {
		if err := check("retry policy default", *f.Default); err != nil {
			return RetryPolicies{}, err
		}
	}
	for class, p := range f.Classes {
		if err := check("retry policy "+class, p); err != nil {
			return RetryPolicies{}, err
		}
	}
	return RetryPolicies{Default: f.Default, Classes: f.Classes}, nil
}
