package session

// Kind is one of the four session states.
type Kind string

const (
	SignedOut      Kind = "signed_out"
	Authenticating Kind = "authenticating"
	Authenticated  Kind = "authenticated"
	Failed         Kind = "failed"
)

// Kinds lists every state, in lifecycle order.
var Kinds = []Kind{SignedOut, Authenticating, Authenticated, Failed}

// State is the committed session state. Reason is only set for Failed.
type State struct {
	Kind   Kind   `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func (s State) String() string {
	if s.Kind == Failed && s.Reason != "" {
		return string(s.Kind) + "(" + s.Reason + ")"
	}
	return string(s.Kind)
}

func signedOut() State {
	return State{Kind: SignedOut}
}

func authenticating() State {
	return State{Kind: Authenticating}
}

func authenticated() State {
	return State{Kind: Authenticated}
}

func failed(reason string) State {
	return State{Kind: Failed, Reason: reason}
}
