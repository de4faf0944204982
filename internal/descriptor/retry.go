package descriptor

import (
	"go.temporal.io/sdk/temporal"
)

type RetryPolicy struct {
	InitialInterval        *Duration `yaml:"initial_interval,omitempty" json:"initial_interval,omitempty"`
	BackoffCoefficient     float64   `yaml:"backoff_coefficient,omitempty" json:"backoff_coefficient,omitempty"`
	MaximumInterval        *Duration `yaml:"maximum_interval,omitempty" json:"maximum_interval,omitempty"`
	MaximumAttempts        int32     `yaml:"maximum_attempts,omitempty" json:"maximum_attempts,omitempty"`
	NonRetryableErrorTypes []string  `yaml:"non_retryable_error_types,omitempty" json:"non_retryable_error_types,omitempty"`
}

// Temporal converts the policy; a nil policy stays nil so the engine
// default applies.
func (p *RetryPolicy) Temporal() *temporal.RetryPolicy {
	if p == nil {
		return nil
	}
	policy := &temporal.RetryPolicy{
		BackoffCoefficient:     p.BackoffCoefficient,
		MaximumAttempts:        p.MaximumAttempts,
		NonRetryableErrorTypes: p.NonRetryableErrorTypes,
	}
	if p.InitialInterval != nil {
		policy.InitialInterval = p.InitialInterval.Std()
	}
	if p.MaximumInterval != nil {
		policy.MaximumInterval = p.MaximumInterval.Std()
	}
	return policy
}

// ParseRetryPolicy decodes a raw retry_policy fragment.
func ParseRetryPolicy(raw any) (*temporal.RetryPolicy, error) {
	if raw == nil {
		return nil, nil
	}
	var policy RetryPolicy
	if err := Decode(raw, &policy); err != nil {
		return nil, err
	}
	return policy.Temporal(), nil
}
