package domain

// Transition is one finalized workflow state change extracted from a chain
// event. These are the semantic fields the proof hash commits to.
type Transition struct {
	TransitionID string `json:"transition_id"`
	InstanceID   string `json:"instance_id"`
	FromState    string `json:"from_state"`
	ToState      string `json:"to_state"`
	Actor        string `json:"actor"`
	Timestamp    string `json:"timestamp"`
}

// TransitionFromEvent extracts the workflow transition the contract recorded
// in a deploy-scoped event payload. Events without one (blocks, era steps,
// unrelated deploys) report false.
func TransitionFromEvent(event ChainEvent) (Transition, bool) {
	raw, ok := event.Raw["transition"].(map[string]any)
	if !ok {
		return Transition{}, false
	}

	t := Transition{
		TransitionID: str(raw, "transition_id"),
		InstanceID:   str(raw, "instance_id"),
		FromState:    str(raw, "from_state"),
		ToState:      str(raw, "to_state"),
		Actor:        str(raw, "actor"),
		Timestamp:    str(raw, "timestamp"),
	}
	if t.TransitionID == "" || t.InstanceID == "" {
		return Transition{}, false
	}
	return t, true
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
