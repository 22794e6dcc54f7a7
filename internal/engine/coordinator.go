package engine

// Action is what the coordinator tells the orchestrator to do next.
type Action string

const (
	ActionInvoke   Action = "invoke"
	ActionComplete Action = "complete"
)

// Decision is the coordinator's routing output for one step.
type Decision struct {
	Action Action
	Stage  Stage // stage to invoke when Action == ActionInvoke
	Forced bool  // set when a starved stage was advanced past
	Seed   bool  // seed placeholder evidence before invoking Stage
	Reason string
}

// Coordinator owns the routing decision: given shared state, pick the
// next stage (or completion) and break unproductive cycles.
type Coordinator struct {
	attemptThreshold int
}

func NewCoordinator(attemptThreshold int) *Coordinator {
	if attemptThreshold <= 0 {
		attemptThreshold = 5
	}
	return &Coordinator{attemptThreshold: attemptThreshold}
}

// Decide is a pure function of state. Priority order:
//  1. completion, when the predicate holds or the stage pointer has
//     advanced past planning
//  2. forced advancement, when the current stage has hit its
//     no-progress threshold (bypasses prerequisite checks and counts
//     the starved stage as passed)
//  3. an explicit routing hint in the latest assistant message, unless
//     the hinted stage's prerequisites are unmet
//  4. the default linear order: retry the current stage until its data
//     is populated, then move on
func (c *Coordinator) Decide(state SharedState) Decision {
	if state.complete() || state.Stage == StageComplete {
		return Decision{Action: ActionComplete, Reason: "completion predicate"}
	}

	current := state.Stage
	if current == StageInit {
		return Decision{Action: ActionInvoke, Stage: StageResearch, Reason: "initial stage"}
	}

	// Cycle breaker: a stage that keeps producing no usable data is
	// advanced past rather than retried forever.
	if state.StageAttempts[current] >= c.attemptThreshold {
		next := current.Next()
		if next == StageComplete {
			return Decision{Action: ActionComplete, Forced: true, Reason: "starved final stage"}
		}
		return Decision{
			Action: ActionInvoke,
			Stage:  next,
			Forced: true,
			Seed:   next == StageSkillAnalysis && len(state.Evidence) == 0,
			Reason: "starvation threshold",
		}
	}

	// Explicit hint beats the default order, but a stage is never
	// entered via hint with unmet prerequisites.
	if hint := ClassifyHint(state.LatestAssistant()); hint != HintNone {
		if target, ok := hint.stage(); ok && target != current && state.prerequisitesMet(target) {
			return Decision{Action: ActionInvoke, Stage: target, Reason: "routing hint"}
		}
	}

	if !state.satisfied(current) {
		return Decision{Action: ActionInvoke, Stage: current, Reason: "stage incomplete"}
	}

	next := current.Next()
	if next == StageComplete {
		return Decision{Action: ActionComplete, Reason: "pipeline finished"}
	}
	return Decision{Action: ActionInvoke, Stage: next, Reason: "default order"}
}
