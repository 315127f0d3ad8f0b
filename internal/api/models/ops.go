package models

// Health is the liveness response.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Readiness is the readiness response with one entry per dependency.
type Readiness struct {
	Status    HealthStatus       `json:"status"`
	Time      Timestamp          `json:"time"`
	Checks    []DependencyStatus `json:"checks"`
	Upstreams []UpstreamStatus   `json:"upstreams,omitempty"`
	Sessions  int                `json:"activeSessions"`
}

// DependencyStatus is the result of checking one local dependency.
type DependencyStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// UpstreamStatus is the circuit-breaker view of one remote dependency.
type UpstreamStatus struct {
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	Breaker       string       `json:"breaker"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// FeatureFlag is the current value of one runtime switch.
type FeatureFlag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt *Timestamp  `json:"updatedAt,omitempty"`
}

// FeatureFlagList lists every known flag.
type FeatureFlagList struct {
	Items []FeatureFlag `json:"items"`
}

// FeatureFlagUpdate sets one flag.
type FeatureFlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FeatureFlagUpdateRequest is the body of PUT /v1/ops/flags.
type FeatureFlagUpdateRequest struct {
	Updates []FeatureFlagUpdate `json:"updates"`
	Reason  string              `json:"reason"`
}
