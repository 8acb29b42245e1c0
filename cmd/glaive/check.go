package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ktada/glaive/grammar"
)

var checkFlags = struct {
	start        *string
	tables       *string
	preferShifts *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "check <grammar file path>",
		Short:   "Build the parsing table and report its conflicts",
		Example: `  glaive check grammar.glaive --tables lr1`,
		Args:    cobra.ExactArgs(1),
		RunE:    runCheck,
	}
	checkFlags.start = cmd.Flags().String("start", "", "start rule (default the first rule of the grammar)")
	checkFlags.tables = cmd.Flags().String("tables", "lalr", "table construction class [lalr|lr1|slr]")
	checkFlags.preferShifts = cmd.Flags().Bool("prefer-shifts", false, "resolve remaining shift/reduce conflicts in favor of the shift, as the deterministic parser does")
	rootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	class, err := tableClass(*checkFlags.tables)
	if err != nil {
		return err
	}

	gram, err := readGrammar(args[0], *checkFlags.start)
	if err != nil {
		return err
	}

	tab, err := gram.GenParsingTable(&grammar.TableConfig{
		Class:                 class,
		AllowConflicts:        true,
		PreferShifts:          *checkFlags.preferShifts,
		PreferShiftsOverEmpty: *checkFlags.preferShifts,
	})
	if err != nil {
		return err
	}

	var unresolved []*grammar.ConflictReport
	for _, c := range tab.Conflicts() {
		if c.Resolved {
			pterm.Info.Println(c)
			continue
		}
		unresolved = append(unresolved, c)
		pterm.Warning.Println(c)
	}

	if len(unresolved) > 0 {
		return &grammar.TableConflictError{Conflicts: unresolved}
	}

	pterm.Success.Printf("%v states, no unresolved conflicts\n", tab.StateCount())
	return nil
}
