package dialogue

import "strconv"

// Validate reports every explicit reference in g that points at a node that
// does not exist. A nil result means the graph is well formed.
func Validate(g *ScenarioGraph) []*MalformedGraphError {
	var errs []*MalformedGraphError
	count := len(g.Nodes)

	for i, n := range g.Nodes {
		if n.Next != nil && (*n.Next < 0 || *n.Next >= count) {
			errs = append(errs, &MalformedGraphError{
				Scenario: g.ID, Node: i, Target: *n.Next, Reason: "next node does not exist",
			})
		}
		for ci, c := range n.Choices {
			if c.Next != nil && (*c.Next < 0 || *c.Next >= count) {
				errs = append(errs, &MalformedGraphError{
					Scenario: g.ID, Node: i, Target: *c.Next,
					Reason: "choice " + strconv.Itoa(ci) + " target does not exist",
				})
			}
		}
	}
	return errs
}
