package integration

import (
	"context"
	"log"

	"github.com/conscious-bot/planning-core/internal/types"
)

// expectedSolverID is per-domain in a full deployment; left empty here means
// "no solver-id cross-check configured," per-domain wiring is a future
// extension point, not a gap in this pass.
const expectedSolverID = ""

// reportEpisode implements spec §4.5.5: terminal-transition linkage reports
// to the domain solver, with join-key coherence gating whether bundle
// hashes are included and whether a richer outcome substrate is trusted.
func (c *Coordinator) reportEpisode(ctx context.Context, task *types.Task, outcomeClass string) {
	if c.domainSolver == nil {
		return
	}
	planID := domainPlanID(task)
	if planID == "" {
		return
	}

	fresh := c.store.Get(task.ID)
	if fresh == nil {
		fresh = task
	}
	solver := fresh.Metadata.Solver
	if solver == nil {
		c.domainSolver.ReportEpisode(ctx, EpisodeReport{TaskID: task.ID, PlanID: planID, OutcomeClass: outcomeClass})
		return
	}

	coherent := joinKeysCoherent(solver, planID)
	report2 := EpisodeReport{TaskID: task.ID, PlanID: planID, OutcomeClass: outcomeClass}

	if coherent && solver.JoinKeys != nil {
		report2.BundleHash = solver.JoinKeys.BundleHash
		report2.TraceBundleHash = solver.JoinKeys.TraceBundleHash
	} else if solver.JoinKeys != nil {
		kind := "unexpected"
		if solver.ReplanCount > 0 {
			kind = "expected under replans"
		}
		log.Printf("[INTEGRATION] join-key mismatch for %s (%s): have planId=%s solverId=%s, want planId=%s",
			task.ID, kind, solver.JoinKeys.PlanID, solver.JoinKeys.SolverID, planID)
	}

	if coherent && solver.SolveResultSubstrate != nil &&
		solver.SolveResultSubstrate.PlanID == planID &&
		solver.SolveResultSubstrate.BundleHash == report2.BundleHash {
		report2.OutcomeClass = solver.SolveResultSubstrate.Class
	}

	if err := c.domainSolver.ReportEpisode(ctx, report2); err != nil {
		log.Printf("[INTEGRATION] episode report failed for %s: %v", task.ID, err)
	}

	if solver.SolveResultSubstrate != nil {
		fresh.Metadata.Solver.SolveResultSubstrate = nil
		c.store.Set(fresh, nil)
	}
}

func domainPlanID(task *types.Task) string {
	if task.Metadata.Solver == nil {
		return ""
	}
	s := task.Metadata.Solver
	switch {
	case s.BuildingPlanID != "":
		return s.BuildingPlanID
	case s.MiningPlanID != "":
		return s.MiningPlanID
	case s.CraftingPlanID != "":
		return s.CraftingPlanID
	case s.NavigationPlanID != "":
		return s.NavigationPlanID
	default:
		return ""
	}
}

func joinKeysCoherent(solver *types.Solver, planID string) bool {
	if solver.JoinKeys == nil {
		return false
	}
	if solver.JoinKeys.PlanID != planID {
		return false
	}
	if solver.JoinKeys.SolverID != "" && expectedSolverID != "" && solver.JoinKeys.SolverID != expectedSolverID {
		return false
	}
	return true
}
