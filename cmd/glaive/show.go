package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ktada/glaive/grammar"
)

var showFlags = struct {
	start  *string
	tables *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "show <grammar file path>",
		Short:   "Print the parsing table of a grammar in a readable format",
		Example: `  glaive show grammar.glaive`,
		Args:    cobra.ExactArgs(1),
		RunE:    runShow,
	}
	showFlags.start = cmd.Flags().String("start", "", "start rule (default the first rule of the grammar)")
	showFlags.tables = cmd.Flags().String("tables", "lalr", "table construction class [lalr|lr1|slr]")
	rootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	class, err := tableClass(*showFlags.tables)
	if err != nil {
		return err
	}

	gram, err := readGrammar(args[0], *showFlags.start)
	if err != nil {
		return err
	}

	tab, err := gram.GenParsingTable(&grammar.TableConfig{
		Class:          class,
		AllowConflicts: true,
		Describe:       true,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, tab.Description)

	conflicts := tab.Conflicts()
	if len(conflicts) == 0 {
		pterm.Success.Println("No conflict")
		return nil
	}

	data := pterm.TableData{
		{"state", "kind", "symbol", "resolution"},
	}
	unresolved := 0
	for _, c := range conflicts {
		if !c.Resolved {
			unresolved++
		}
		data = append(data, []string{
			fmt.Sprintf("%v", c.State),
			string(c.Kind),
			c.Symbol,
			c.Resolution,
		})
	}
	err = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if err != nil {
		return err
	}

	if unresolved > 0 {
		pterm.Warning.Printf("%v of %v conflicts unresolved; only the generalized parser accepts this table\n", unresolved, len(conflicts))
	} else {
		pterm.Success.Printf("All %v conflicts resolved\n", len(conflicts))
	}
	return nil
}
