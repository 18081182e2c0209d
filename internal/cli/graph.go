package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/engine"
	"github.com/picklr-io/anfctl/internal/resource"
	"github.com/picklr-io/anfctl/internal/workflow"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Output the resource dependency graph in DOT format",
	Long: `Prints the resource hierarchy and its references in Graphviz DOT format.
Pipe the output to 'dot' to generate an image:

  anfctl graph -c anf.pkl | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func init() {
	addConfigFlags(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &workflow.ConfigError{Err: err}
	}
	plan, _, err := workflow.BuildPlan(cfg, workflow.SubnetID(cfg))
	if err != nil {
		return err
	}
	writeDOT(cmd.OutOrStdout(), plan)
	return nil
}

func nodeLabel(ref resource.Ref) string {
	return ref.Kind.String() + "." + ref.LeafName()
}

// writeDOT prints every node and an edge from each node to the resources
// it requires: its parent and any explicit references.
func writeDOT(w io.Writer, plan *engine.Plan) {
	fmt.Fprintln(w, "digraph anf {")
	fmt.Fprintln(w, "  rankdir = \"BT\";")
	fmt.Fprintln(w, "  node [shape = rect];")
	fmt.Fprintln(w)

	for _, node := range plan.CreationOrder() {
		fmt.Fprintf(w, "  %q;\n", nodeLabel(node.Ref))
	}
	fmt.Fprintln(w)

	for _, node := range plan.CreationOrder() {
		for _, dep := range plan.Dependencies(node.Ref) {
			fmt.Fprintf(w, "  %q -> %q;\n", nodeLabel(node.Ref), nodeLabel(dep))
		}
	}
	fmt.Fprintln(w, "}")
}
