package domain

import "fmt"

type State string

const (
	StateConfiguring     State = "CONFIGURING"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateVerifying       State = "VERIFYING"
	StateCompleted       State = "COMPLETED"
)

type Event string

const (
	EventOrderCreated          Event = "ORDER_CREATED"
	EventOrderFailed           Event = "ORDER_FAILED"
	EventPaymentSucceeded      Event = "PAYMENT_SUCCEEDED"
	EventPaymentFailed         Event = "PAYMENT_FAILED"
	EventPaymentDismissed      Event = "PAYMENT_DISMISSED"
	EventVerificationCompleted Event = "VERIFICATION_COMPLETED"
	EventVerificationFailed    Event = "VERIFICATION_FAILED"
)

var transitions = map[State]map[Event]State{
	// a signed callback can still land after the popup was dismissed or a
	// forged confirm failed verification; the gateway order is the same
	StateConfiguring: {
		EventOrderCreated:     StateAwaitingPayment,
		EventOrderFailed:      StateConfiguring,
		EventPaymentSucceeded: StateVerifying,
	},
	StateAwaitingPayment: {
		EventPaymentSucceeded: StateVerifying,
		EventPaymentFailed:    StateConfiguring,
		EventPaymentDismissed: StateConfiguring,
	},
	StateVerifying: {
		EventVerificationCompleted: StateCompleted,
		EventVerificationFailed:    StateConfiguring,
	},
}

// Transition returns the state reached by firing event in from.
// Pairs outside the table fail with ErrInvalidTransition.
func Transition(from State, event Event) (State, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%s on %s: %w", event, from, ErrInvalidTransition)
}

func (s State) Terminal() bool {
	return s == StateCompleted
}

// Machine tracks one checkout attempt in memory.
type Machine struct {
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StateConfiguring}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Fire(event Event) error {
	next, err := Transition(m.state, event)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

// Reset re-enters CONFIGURING from any state.
func (m *Machine) Reset() {
	m.state = StateConfiguring
}
