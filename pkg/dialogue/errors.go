package dialogue

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a scenario ID is not registered.
	ErrNotFound = errors.New("scenario not found")

	// ErrEndOfGraph signals that the cursor ran past the last node.
	ErrEndOfGraph = errors.New("end of graph")

	// ErrMissingID is returned when registering a scenario without an ID.
	ErrMissingID = errors.New("scenario ID is required")

	// ErrDuplicateScenario is returned when a scenario ID is registered twice.
	ErrDuplicateScenario = errors.New("duplicate scenario")
)

// MalformedGraphError reports a graph that references a node that does not exist.
type MalformedGraphError struct {
	Scenario string
	Node     int // Node holding the bad reference
	Target   int // Referenced index
	Reason   string
}

func (e *MalformedGraphError) Error() string {
	return fmt.Sprintf("malformed scenario %q: node %d -> %d: %s", e.Scenario, e.Node, e.Target, e.Reason)
}

// IsMalformed reports whether err is or wraps a MalformedGraphError.
func IsMalformed(err error) bool {
	var mge *MalformedGraphError
	return errors.As(err, &mge)
}
