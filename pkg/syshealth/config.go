package syshealth

import "time"

// Config holds thresholds for the host pressure monitor.
type Config struct {
	CollectionInterval time.Duration `env:"SYSHEALTH_INTERVAL" envDefault:"30s"`

	IOWaitWarningPercent  float64 `env:"SYSHEALTH_IOWAIT_WARNING" envDefault:"30"`
	IOWaitCriticalPercent float64 `env:"SYSHEALTH_IOWAIT_CRITICAL" envDefault:"40"`
	// CPU load thresholds are multiples of the core count.
	CPULoadWarningFactor  float64 `env:"SYSHEALTH_CPU_WARNING" envDefault:"2"`
	CPULoadCriticalFactor float64 `env:"SYSHEALTH_CPU_CRITICAL" envDefault:"3"`
	MemoryWarningPercent  float64 `env:"SYSHEALTH_MEM_WARNING" envDefault:"85"`
	MemoryCriticalPercent float64 `env:"SYSHEALTH_MEM_CRITICAL" envDefault:"95"`

	StalenessThreshold time.Duration `env:"SYSHEALTH_STALE_AFTER" envDefault:"2m"`
	CollectionTimeout  time.Duration `env:"SYSHEALTH_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() *Config {
	return &Config{
		CollectionInterval:    30 * time.Second,
		IOWaitWarningPercent:  30.0,
		IOWaitCriticalPercent: 40.0,
		CPULoadWarningFactor:  2.0,
		CPULoadCriticalFactor: 3.0,
		MemoryWarningPercent:  85.0,
		MemoryCriticalPercent: 95.0,
		StalenessThreshold:    2 * time.Minute,
		CollectionTimeout:     5 * time.Second,
	}
}
