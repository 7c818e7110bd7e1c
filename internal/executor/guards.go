package executor

import (
	"math"

	"github.com/conscious-bot/planning-core/internal/config"
)

// Decision is evaluateGuards' result (spec §4.7).
type Decision string

const (
	DecisionBlockUnknownPosition Decision = "block_unknown_position"
	DecisionBlockOutsideGeofence Decision = "block_outside_geofence"
	DecisionBlockUnknownLeaf     Decision = "block_unknown_leaf"
	DecisionShadowObserve        Decision = "shadow_observe"
	DecisionRateLimited          Decision = "rate_limited"
	DecisionAwaitRigG            Decision = "await_rig_g"
)

// Position is the bot's last-known world position. YKnown distinguishes an
// unreported Y from Y=0.
type Position struct {
	X, Y, Z float64
	YKnown  bool
}

// GuardInput is everything evaluateGuards needs to make its decision. It
// carries no collaborator handles — only values — so the function stays a
// pure decision function with no side effects, per spec §5.
type GuardInput struct {
	Geofence      config.Geofence
	Position      *Position
	Leaf          string
	AllowedLeaves map[string]struct{}
	Mode          config.ExecutorMode
	RateBudget    int
}

// EvaluateGuards runs the strict-ordering guard pipeline: geofence,
// allowlist, mode, rate limiter. It never mutates anything — the rate
// limiter budget and bot position are read and passed in by the caller.
func EvaluateGuards(in GuardInput) Decision {
	if in.Geofence.Enabled {
		if in.Position == nil {
			return DecisionBlockUnknownPosition
		}
		if !withinGeofence(in.Geofence, *in.Position) {
			return DecisionBlockOutsideGeofence
		}
	}

	if _, ok := in.AllowedLeaves[in.Leaf]; !ok {
		return DecisionBlockUnknownLeaf
	}

	if in.Mode == config.ModeShadow {
		return DecisionShadowObserve
	}

	if in.RateBudget <= 0 {
		return DecisionRateLimited
	}

	return DecisionAwaitRigG
}

func withinGeofence(g config.Geofence, pos Position) bool {
	dx := math.Abs(pos.X - g.CenterX)
	dz := math.Abs(pos.Z - g.CenterZ)
	if math.Max(dx, dz) > g.Radius {
		return false
	}
	if g.YEnabled {
		if !pos.YKnown {
			return false
		}
		if pos.Y < g.YMin || pos.Y > g.YMax {
			return false
		}
	}
	return true
}
