package workflows

// Transition moves a record from any of From to To when Action is applied.
type Transition struct {
	Action string
	From   []string
	To     string
}

// StateMachine enforces status transitions keyed by action
type StateMachine struct {
	order       []string
	transitions map[string]Transition
}

// NewStateMachine creates a state machine from its transition table. Later
// entries for the same action replace earlier ones.
func NewStateMachine(transitions ...Transition) *StateMachine {
	sm := &StateMachine{transitions: make(map[string]Transition, len(transitions))}
	for _, t := range transitions {
		if _, exists := sm.transitions[t.Action]; !exists {
			sm.order = append(sm.order, t.Action)
		}
		sm.transitions[t.Action] = t
	}
	return sm
}

// Target returns the status action leads to from the given status.
func (sm *StateMachine) Target(action, from string) (string, bool) {
	t, exists := sm.transitions[action]
	if !exists {
		return "", false
	}
	for _, f := range t.From {
		if f == from {
			return t.To, true
		}
	}
	return "", false
}

// AllowedActions returns the actions applicable from a status, in table order
func (sm *StateMachine) AllowedActions(from string) []string {
	actions := []string{}
	for _, action := range sm.order {
		if _, ok := sm.Target(action, from); ok {
			actions = append(actions, action)
		}
	}
	return actions
}
