package main

import (
	"fmt"
	"os"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/spf13/cobra"

	verr "github.com/ktada/glaive/error"
	"github.com/ktada/glaive/grammar"
	"github.com/ktada/glaive/spec"
)

var traceKeys = []string{
	"glaive.grammar",
	"glaive.forest",
	"glaive.driver",
}

var rootFlags = struct {
	trace *string
}{}

var rootCmd = &cobra.Command{
	Use:   "glaive",
	Short: "Generate parsing tables from a grammar and run them over input",
	Long: `glaive builds LALR, LR(1), or SLR parsing tables from a grammar
written in the glaive notation and parses input with them, without a
separate lexer. Ambiguous grammars are supported through the generalized
parser, which hands back every derivation as a shared forest.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		gtrace.SyntaxTracer = gologadapter.New()
		level := traceLevel(*rootFlags.trace)
		for _, key := range traceKeys {
			tracing.Select(key).SetTraceLevel(level)
		}
	},
}

func init() {
	rootFlags.trace = rootCmd.PersistentFlags().String("trace", "Error", "trace level [Debug|Info|Error]")
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}

func traceLevel(name string) tracing.TraceLevel {
	return tracing.TraceLevelFromString(name)
}

// readGrammar parses and builds a grammar from a source file. Build errors
// are decorated with the file path so messages carry a source excerpt.
func readGrammar(path string, startRule string) (gram *grammar.Grammar, retErr error) {
	defer func() {
		if retErr == nil {
			return
		}
		specErrs, ok := retErr.(verr.SpecErrors)
		if !ok {
			return
		}
		for _, err := range specErrs {
			err.FilePath = path
			err.SourceName = path
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open the grammar file %s: %w", path, err)
	}
	defer f.Close()

	ast, err := spec.Parse(f)
	if err != nil {
		return nil, err
	}

	b := grammar.GrammarBuilder{
		AST:       ast,
		StartRule: startRule,
	}
	return b.Build()
}

func tableClass(name string) (grammar.TableClass, error) {
	switch name {
	case "lalr":
		return grammar.TableClassLALR, nil
	case "lr1":
		return grammar.TableClassLR1, nil
	case "slr":
		return grammar.TableClassSLR, nil
	}
	return "", fmt.Errorf("unknown table class %q; want lalr, lr1, or slr", name)
}
