package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/heartline/pkg/dialogue"
)

var graphCmd = &cobra.Command{
	Use:   "graph <scenario-id>",
	Short: "Print a scenario's nodes, choices and jumps",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	pack, _, err := loadPack(cmd, false)
	if err != nil {
		return err
	}
	for _, g := range pack.Scenarios {
		if g.ID == args[0] {
			PrintGraph(cmd.OutOrStdout(), &g)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", dialogue.ErrNotFound, args[0])
}

// PrintGraph writes a readable outline of a scenario graph.
func PrintGraph(w io.Writer, g *dialogue.ScenarioGraph) {
	name := g.Name
	if name == "" {
		name = g.ID
	}
	fmt.Fprintf(w, "%s (%s), %d nodes\n", g.ID, name, len(g.Nodes))

	for i, n := range g.Nodes {
		text := n.Text
		if n.Speaker != "" {
			text = n.Speaker + ": " + text
		}
		fmt.Fprintf(w, "  [%d] %s", i, text)

		var marks []string
		if n.SetFlag != "" {
			marks = append(marks, "sets "+n.SetFlag)
		}
		if n.Cue != nil {
			marks = append(marks, "cue "+n.Cue.Name)
		}
		if n.Next != nil {
			marks = append(marks, fmt.Sprintf("-> %d", *n.Next))
		}
		if n.End {
			marks = append(marks, "end")
		}
		if len(marks) > 0 {
			fmt.Fprintf(w, " (%s)", strings.Join(marks, ", "))
		}
		fmt.Fprintln(w)

		for ci, c := range n.Choices {
			target := i + 1
			if c.Next != nil {
				target = *c.Next
			}
			fmt.Fprintf(w, "      %d. %q -> %d", ci, c.Text, target)
			for _, id := range slices.Sorted(maps.Keys(c.Affection)) {
				fmt.Fprintf(w, " %s%+d", id, c.Affection[id])
			}
			if c.RequiresFlag != "" {
				fmt.Fprintf(w, " [requires %s]", c.RequiresFlag)
			}
			fmt.Fprintln(w)
		}
	}
}
