package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ktada/glaive/driver"
)

var parseFlags = struct {
	source    *string
	start     *string
	tables    *string
	glr       *bool
	trees     *int
	onlyParse *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "parse <grammar file path>",
		Short:   "Parse a text stream",
		Example: `  cat src | glaive parse grammar.glaive`,
		Args:    cobra.ExactArgs(1),
		RunE:    runParse,
	}
	parseFlags.source = cmd.Flags().StringP("source", "s", "", "source file path (default stdin)")
	parseFlags.start = cmd.Flags().String("start", "", "start rule (default the first rule of the grammar)")
	parseFlags.tables = cmd.Flags().String("tables", "lalr", "table construction class [lalr|lr1|slr]")
	parseFlags.glr = cmd.Flags().Bool("glr", false, "use the generalized parser")
	parseFlags.trees = cmd.Flags().Int("trees", 1, "maximum number of trees to print for ambiguous input (0 prints all)")
	parseFlags.onlyParse = cmd.Flags().Bool("only-parse", false, "when this option is enabled, the parser doesn't print trees")
	rootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		err, ok := v.(error)
		if !ok {
			retErr = fmt.Errorf("an unexpected error occurred: %v", v)
		} else {
			retErr = err
		}
		fmt.Fprintf(os.Stderr, "%v:\n%v", retErr, string(debug.Stack()))
	}()

	class, err := tableClass(*parseFlags.tables)
	if err != nil {
		return err
	}

	gram, err := readGrammar(args[0], *parseFlags.start)
	if err != nil {
		return err
	}

	src := os.Stdin
	sourceName := "stdin"
	if *parseFlags.source != "" {
		f, err := os.Open(*parseFlags.source)
		if err != nil {
			return fmt.Errorf("cannot open the source file %s: %w", *parseFlags.source, err)
		}
		defer f.Close()
		src = f
		sourceName = *parseFlags.source
	}
	input, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	opts := []driver.Option{
		driver.Tables(class),
		driver.SourceName(sourceName),
	}

	ctx := context.Background()
	var res *driver.Result
	if *parseFlags.glr {
		p, err := driver.NewGLRParser(gram, opts...)
		if err != nil {
			return err
		}
		res, err = p.Parse(ctx, input)
		if err != nil {
			return err
		}
	} else {
		p, err := driver.NewParser(gram, opts...)
		if err != nil {
			return err
		}
		res, err = p.Parse(ctx, input)
		if err != nil {
			return err
		}
	}

	if *parseFlags.onlyParse {
		return nil
	}

	cursor := res.Forest.EnumerateTrees(res.Root)
	total := cursor.TreeCount()
	if total > 1 {
		pterm.Info.Printf("%v derivations\n", total)
	}

	limit := *parseFlags.trees
	if limit <= 0 || limit > total {
		limit = total
	}
	for i := 0; i < limit; i++ {
		tree, ok := cursor.Next()
		if !ok {
			break
		}
		if limit > 1 {
			fmt.Fprintf(os.Stdout, "tree %v:\n", i+1)
		}
		driver.PrintTree(os.Stdout, gram, tree)
	}
	if limit < total {
		fmt.Fprintf(os.Stdout, "... %v more\n", total-limit)
	}

	return nil
}
