package league

import "fmt"

// InvalidInputError reports team data, fixtures or settings that make a run
// impossible. It is returned before any trial starts.
type InvalidInputError struct {
	Team    string
	Fixture *Fixture
	Reason  string
}

func (e *InvalidInputError) Error() string {
	switch {
	case e.Fixture != nil:
		return fmt.Sprintf("invalid fixture %s vs %s: %s", e.Fixture.Home, e.Fixture.Away, e.Reason)
	case e.Team != "":
		return fmt.Sprintf("invalid team %q: %s", e.Team, e.Reason)
	default:
		return "invalid input: " + e.Reason
	}
}

// NewInvalidInputf builds an InvalidInputError that is not tied to a team or fixture.
func NewInvalidInputf(format string, args ...interface{}) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

func invalidTeam(team, format string, args ...interface{}) error {
	return &InvalidInputError{Team: team, Reason: fmt.Sprintf(format, args...)}
}

func invalidFixture(f Fixture, reason string) error {
	return &InvalidInputError{Fixture: &f, Reason: reason}
}

// WorkerFailureError is returned when a trial worker dies. The whole run is
// discarded since the missing trials would bias every probability.
type WorkerFailureError struct {
	Worker int
	Lo, Hi int
	Cause  error
}

func (e *WorkerFailureError) Error() string {
	return fmt.Sprintf("worker %d failed on trials [%d, %d): %v", e.Worker, e.Lo, e.Hi, e.Cause)
}

func (e *WorkerFailureError) Unwrap() error {
	return e.Cause
}
