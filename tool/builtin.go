package tool

import "time"

// Builtin returns the catalog of tool definitions shipped with the service.
// Registry.Discover still applies include/exclude filtering and the
// excluded-prefix rules on top of this list.
func Builtin() []Definition {
	return []Definition{
		{
			Name:           "nmap",
			CommandName:    "nmap",
			Description:    "TCP/UDP port scanner and service enumerator",
			Category:       "scanner",
			AllowedFlags:   []string{"-s", "-p", "-T", "-v", "-A", "-O", "-Pn", "--top-ports"},
			DefaultTimeout: 300 * time.Second,
			Concurrency:    2,
			Breaker: BreakerConfig{
				FailureThreshold:  5,
				RecoveryTimeout:   60 * time.Second,
				SuccessThreshold:  2,
				TimeoutMultiplier: 1.5,
				MaxTimeout:        300 * time.Second,
				EnableJitter:      true,
			},
			Unsafe: true,
		},
		{
			Name:           "masscan",
			CommandName:    "masscan",
			Description:    "high-rate asynchronous port scanner",
			Category:       "scanner",
			AllowedFlags:   []string{"-p", "--rate", "-e", "--banners"},
			DefaultTimeout: 600 * time.Second,
			Concurrency:    1,
			Breaker: BreakerConfig{
				FailureThreshold:  3,
				RecoveryTimeout:   90 * time.Second,
				SuccessThreshold:  2,
				TimeoutMultiplier: 2,
				MaxTimeout:        600 * time.Second,
				EnableJitter:      true,
			},
			Unsafe: true,
		},
		{
			Name:           "gobuster",
			CommandName:    "gobuster",
			Description:    "directory, DNS, and vhost enumerator",
			Category:       "enumerator",
			AllowedFlags:   []string{"-m", "-w", "-t", "-x", "-q", "--timeout"},
			DefaultTimeout: 300 * time.Second,
			Concurrency:    4,
			Breaker: BreakerConfig{
				FailureThreshold:  5,
				RecoveryTimeout:   30 * time.Second,
				SuccessThreshold:  1,
				TimeoutMultiplier: 1.5,
				MaxTimeout:        180 * time.Second,
				EnableJitter:      false,
			},
			Unsafe: false,
		},
		{
			Name:           "dig",
			CommandName:    "dig",
			Description:    "DNS resolution and record lookup",
			Category:       "enumerator",
			AllowedFlags:   []string{"-t", "-p", "+short", "+noall", "+answer"},
			DefaultTimeout: 30 * time.Second,
			Concurrency:    8,
			Breaker: BreakerConfig{
				FailureThreshold:  5,
				RecoveryTimeout:   15 * time.Second,
				SuccessThreshold:  1,
				TimeoutMultiplier: 1.5,
				MaxTimeout:        60 * time.Second,
				EnableJitter:      false,
			},
			Unsafe: false,
		},
	}
}
