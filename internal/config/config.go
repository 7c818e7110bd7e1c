// Package config loads the spine's environment-driven configuration,
// following the same {prefix-aware getenv, typed fallback} pattern the
// teacher's llm.NewTier uses for tiered credentials.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExecutorMode gates what the executor is allowed to do at runtime. The only
// valid modes are shadow and live (spec §6) — there is no third "confirm"
// mode; live confirmation is a one-shot env interlock checked in Load, not a
// standing mode of its own.
type ExecutorMode string

const (
	ModeLive   ExecutorMode = "live"
	ModeShadow ExecutorMode = "shadow"
)

// Geofence bounds the executor's allowed operating area (spec §4.7).
type Geofence struct {
	Enabled  bool
	CenterX  float64
	CenterZ  float64
	Radius   float64
	YEnabled bool
	YMin     float64
	YMax     float64
}

// Config is the full set of environment-driven knobs for the spine.
type Config struct {
	EnablePlanningExecutor bool
	ExecutorMode           ExecutorMode

	MaxStepsPerMinute int
	FailureCooldownMs int64
	PollIntervalMs    int64
	MaxBackoffMs      int64
	BreakerOpenMs     int64

	Geofence Geofence

	SterlingIntentResolve    bool
	StrictFinalize           bool
	JoinKeysDeprecatedCompat bool
}

// Load reads every spine environment key, applying the documented defaults
// (spec §6). It never fails: missing or malformed values fall back to
// defaults, matching the teacher's getenv-with-fallback convention rather
// than treating configuration as something that can error out at boot. The
// fallbacks for live mode without confirmation and for a malformed geofence
// center or Y range log a [CONFIG] warning; the others are silent.
func Load() *Config {
	mode := ExecutorMode(strings.ToLower(strings.TrimSpace(os.Getenv("EXECUTOR_MODE"))))
	switch mode {
	case ModeLive, ModeShadow:
	default:
		mode = ModeShadow
	}
	if mode == ModeLive && os.Getenv("EXECUTOR_LIVE_CONFIRM") != "YES" {
		log.Printf("[CONFIG] WARNING: EXECUTOR_MODE=live requires EXECUTOR_LIVE_CONFIRM=YES — falling back to shadow")
		mode = ModeShadow
	}

	return &Config{
		EnablePlanningExecutor: getBool("ENABLE_PLANNING_EXECUTOR", false),
		ExecutorMode:           mode,

		MaxStepsPerMinute: int(getInt("EXECUTOR_MAX_STEPS_PER_MINUTE", 6)),
		FailureCooldownMs: getInt("EXECUTOR_FAILURE_COOLDOWN_MS", 10000),
		PollIntervalMs:    getInt("EXECUTOR_POLL_MS", 10000),
		MaxBackoffMs:      getInt("EXECUTOR_MAX_BACKOFF_MS", 60000),
		BreakerOpenMs:     getInt("BOT_BREAKER_OPEN_MS", 15000),

		Geofence: parseGeofence(),

		SterlingIntentResolve:    getBool("STERLING_INTENT_RESOLVE", true),
		StrictFinalize:           getBool("PLANNING_STRICT_FINALIZE", false),
		JoinKeysDeprecatedCompat: getBool("JOIN_KEYS_DEPRECATED_COMPAT", false),
	}
}

// parseGeofence reads EXECUTOR_GEOFENCE_CENTER ("x,z" or "x,y,z"),
// EXECUTOR_GEOFENCE_RADIUS, and EXECUTOR_GEOFENCE_Y_RANGE ("min,max") per
// spec §6. The geofence is enabled only when CENTER parses; a malformed or
// absent CENTER leaves it disabled rather than defaulting to an arbitrary
// origin.
func parseGeofence() Geofence {
	g := Geofence{Radius: getFloat("EXECUTOR_GEOFENCE_RADIUS", 100)}

	center := strings.TrimSpace(os.Getenv("EXECUTOR_GEOFENCE_CENTER"))
	if center != "" {
		fields := strings.Split(center, ",")
		var x, z float64
		var err error
		switch len(fields) {
		case 2:
			x, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
			if err == nil {
				z, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
			}
		case 3:
			x, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
			if err == nil {
				z, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			}
		default:
			err = strconv.ErrSyntax
		}
		if err != nil {
			log.Printf("[CONFIG] WARNING: malformed EXECUTOR_GEOFENCE_CENTER=%q, geofence disabled", center)
		} else {
			g.Enabled = true
			g.CenterX = x
			g.CenterZ = z
		}
	}

	yRange := strings.TrimSpace(os.Getenv("EXECUTOR_GEOFENCE_Y_RANGE"))
	if yRange != "" {
		fields := strings.Split(yRange, ",")
		if len(fields) == 2 {
			min, errMin := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
			max, errMax := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
			if errMin == nil && errMax == nil {
				g.YEnabled = true
				g.YMin = min
				g.YMax = max
			} else {
				log.Printf("[CONFIG] WARNING: malformed EXECUTOR_GEOFENCE_Y_RANGE=%q, Y bound disabled", yRange)
			}
		} else {
			log.Printf("[CONFIG] WARNING: malformed EXECUTOR_GEOFENCE_Y_RANGE=%q, Y bound disabled", yRange)
		}
	}

	return g
}

// PollInterval is the executor tick interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MaxBackoff is the runCycle error backoff ceiling as a time.Duration.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// BreakerOpenDuration is the base circuit-breaker open window.
func (c *Config) BreakerOpenDuration() time.Duration {
	return time.Duration(c.BreakerOpenMs) * time.Millisecond
}

func getBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
