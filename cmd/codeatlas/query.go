package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/query"
)

var (
	queryLimit    int
	cyclesDepth   int
	cyclesMax     int
	godClassesMin int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run read-side queries against the knowledge graph",
}

// runQuery opens the app, runs fn against the query service and prints
// the result as JSON.
func runQuery(cmd *cobra.Command, fn func(ctx context.Context, q *query.Service) (any, error)) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	result, err := fn(cmd.Context(), query.New(a.store, a.graphID))
	if err != nil {
		return err
	}
	return printJSON(result)
}

var callersCmd = &cobra.Command{
	Use:   "callers NAME",
	Short: "Functions that call the named function",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.Callers(ctx, args[0], queryLimit)
		})
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees NAME",
	Short: "Functions the named function calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.Callees(ctx, args[0], queryLimit)
		})
	},
}

var callsCmd = &cobra.Command{
	Use:   "calls [NAME]",
	Short: "Call edges, optionally filtered to one function name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.CallEdges(ctx, name, queryLimit)
		})
	},
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Call cycles in the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.Cycles(ctx, cyclesDepth, cyclesMax)
		})
	},
}

var couplingCmd = &cobra.Command{
	Use:   "coupling",
	Short: "Functions ranked by call-edge coupling",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.CouplingRanking(ctx, queryLimit)
		})
	},
}

var mostCalledCmd = &cobra.Command{
	Use:   "most-called",
	Short: "Functions ranked by accumulated call count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.MostCalled(ctx, queryLimit)
		})
	},
}

var inheritanceCmd = &cobra.Command{
	Use:   "inheritance",
	Short: "Class/ancestor pairs including transitive ancestors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.InheritancePairs(ctx, queryLimit)
		})
	},
}

var methodsCmd = &cobra.Command{
	Use:   "methods CLASS",
	Short: "Methods defined on the named class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.MethodsOfClass(ctx, args[0], queryLimit)
		})
	},
}

var godClassesCmd = &cobra.Command{
	Use:   "god-classes",
	Short: "Classes with an outsized method count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.GodClasses(ctx, godClassesMin, queryLimit)
		})
	},
}

var variablesCmd = &cobra.Command{
	Use:   "variables NAME",
	Short: "Readers and writers of the named variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.VariableUsages(ctx, args[0], queryLimit)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search SUBSTRING",
	Short: "Entities whose name contains the substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.Search(ctx, args[0], queryLimit)
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Indexed files grouped by language",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.FilesByLanguage(ctx)
		})
	},
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents FILE...",
	Short: "Files whose code calls into or touches variables of the given files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, q *query.Service) (any, error) {
			return q.DependentFiles(ctx, args)
		})
	},
}

func init() {
	queryCmd.PersistentFlags().IntVarP(&queryLimit, "limit", "n", 0, "max results (default per query)")
	cyclesCmd.Flags().IntVar(&cyclesDepth, "depth", 0, "max cycle length to search for")
	cyclesCmd.Flags().IntVar(&cyclesMax, "max", 0, "stop after this many cycles")
	godClassesCmd.Flags().IntVar(&godClassesMin, "min", 0, "minimum method count")

	queryCmd.AddCommand(
		callersCmd, calleesCmd, callsCmd, cyclesCmd, couplingCmd,
		mostCalledCmd, inheritanceCmd, methodsCmd, godClassesCmd,
		variablesCmd, searchCmd, filesCmd, dependentsCmd,
	)
}
