// Command gbnfcheck compiles and exercises grammars from the command
// line, without needing a model or a real tokenizer wired up.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmorganca/llamagrammar/grammar"
	"github.com/jmorganca/llamagrammar/session"
	"github.com/jmorganca/llamagrammar/vocab"
)

func main() {
	cobra.CheckErr(newCLI().Execute())
}

func newCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gbnfcheck",
		Short: "Compile and drive GBNF-style grammars",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	rootCmd.AddCommand(newValidateCmd(), newRunCmd())
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate GRAMMAR-FILE",
		Short: "Compile a grammar and print its canonical form, or a diagnostic",
		Args:  cobra.ExactArgs(1),
		RunE:  validateHandler,
	}
	cmd.Flags().String("root", "root", "name of the rule to start parsing from")
	return cmd
}

func validateHandler(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return err
	}

	rt, err := grammar.CompileRoot(string(src), root)
	if err != nil {
		var gerr *grammar.Error
		if errors.As(err, &gerr) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", gerr.Kind, gerr.Error())
			os.Exit(1)
		}
		return err
	}

	return grammar.Print(rt, cmd.OutOrStdout())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run GRAMMAR-FILE --vocab VOCAB-FILE",
		Short: "Replay input through a compiled grammar one simulated token at a time",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandler,
	}
	cmd.Flags().String("root", "root", "name of the rule to start parsing from")
	cmd.Flags().String("input", "-", "newline-delimited tokens to feed the grammar, or - to read stdin")
	cmd.Flags().String("vocab", "", "newline-delimited vocabulary piece file; a line of just \"<eog>\" marks an end-of-generation id")
	cmd.MarkFlagRequired("vocab")
	return cmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return err
	}
	inputFlag, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}
	vocabPath, err := cmd.Flags().GetString("vocab")
	if err != nil {
		return err
	}

	rt, err := grammar.CompileRoot(string(src), root)
	if err != nil {
		return err
	}

	vb, err := loadVocab(vocabPath)
	if err != nil {
		return err
	}

	input, err := readInput(cmd, inputFlag)
	if err != nil {
		return err
	}

	sess, err := session.Init(rt, vb, session.Options{})
	if err != nil {
		return err
	}

	pieceToID := make(map[string]int32, vb.Len())
	allIDs := make([]int32, vb.Len())
	for id := 0; id < vb.Len(); id++ {
		allIDs[id] = int32(id)
		p := string(vb.Piece(int32(id)))
		if _, ok := pieceToID[p]; !ok {
			pieceToID[p] = int32(id)
		}
	}

	lines := strings.Split(strings.TrimSuffix(string(input), "\n"), "\n")
	for step, line := range lines {
		id, ok := pieceToID[line]
		if !ok {
			return fmt.Errorf("gbnfcheck run: step %d: no vocabulary entry for %q", step, line)
		}

		logits := make([]float32, len(allIDs))
		if err := sess.Apply(logits, allIDs); err != nil {
			return err
		}
		var masked []int32
		for i, lg := range logits {
			if math.IsInf(float64(lg), -1) {
				masked = append(masked, allIDs[i])
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "step %d: masked %d/%d vocabulary entries\n", step, len(masked), len(allIDs))

		if err := sess.Accept(id); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "step %d: frontier size %d\n", step, len(sess.Stacks()))
	}

	if sess.AllowsEndOfGeneration() {
		fmt.Fprintln(cmd.OutOrStdout(), "accepted: input is a complete parse")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "accepted: input is a valid prefix, but not yet complete")
	}
	return nil
}

// loadVocab reads a newline-delimited piece file into a Static
// vocabulary, one id per line in file order. A line of exactly
// "<eog>" registers that id as an end-of-generation token with an
// empty piece, rather than as a literal four-byte piece.
func loadVocab(path string) (*vocab.Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pieces []string
	var eog []int32
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for id := int32(0); scanner.Scan(); id++ {
		line := scanner.Text()
		if line == "<eog>" {
			eog = append(eog, id)
			pieces = append(pieces, "")
			continue
		}
		pieces = append(pieces, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vocab.NewStatic(pieces, eog), nil
}

func readInput(cmd *cobra.Command, flag string) ([]byte, error) {
	if flag != "-" {
		return []byte(flag), nil
	}
	r := bufio.NewReader(cmd.InOrStdin())
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return data, nil
}
