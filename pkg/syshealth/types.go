package syshealth

import "time"

// HealthZone is a coarse host pressure band derived from the score.
type HealthZone string

const (
	// HealthZoneCritical is a score of 0-33.
	HealthZoneCritical HealthZone = "critical"
	// HealthZoneWarning is a score of 34-66.
	HealthZoneWarning HealthZone = "warning"
	// HealthZoneSafe is a score of 67-100.
	HealthZoneSafe HealthZone = "safe"
)

func zoneFor(score int) HealthZone {
	switch {
	case score <= 33:
		return HealthZoneCritical
	case score <= 66:
		return HealthZoneWarning
	default:
		return HealthZoneSafe
	}
}

// HealthMetrics is one collection of host metrics and the derived score.
type HealthMetrics struct {
	// Score is 0-100, higher is healthier.
	Score int        `json:"score"`
	Zone  HealthZone `json:"zone"`

	CPULoadAvg    float64 `json:"cpu_load_avg"`
	IOWaitPercent float64 `json:"io_wait_percent"`
	MemoryPercent float64 `json:"memory_percent"`

	Timestamp time.Time `json:"timestamp"`
	// Stale is set when the last collection is older than the staleness
	// threshold.
	Stale bool `json:"stale"`
}

// Monitor samples host pressure in the background.
type Monitor interface {
	Start() error
	Stop() error
	// GetHealth returns a copy of the latest metrics.
	GetHealth() *HealthMetrics
}
