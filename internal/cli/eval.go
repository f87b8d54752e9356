package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftui/weft/internal/engine"
	"github.com/weftui/weft/internal/ir"
)

// EvalResult is the JSON payload for a successful evaluation.
type EvalResult struct {
	Undefined bool            `json:"undefined,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <program-file> <expression>",
		Short: "Evaluate an expression against a program's initial state",
		Long: `Evaluate a JSON expression document against a program's initial state.

The program is loaded and its state initialized exactly as the runtime
would, then the expression is evaluated once and the result printed.

Examples:
  weft eval app.json '{"expr":"var","name":"count"}'
  weft eval app.yaml '{"expr":"bin","op":"+","left":{"expr":"var","name":"count"},"right":{"expr":"lit","value":1}}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runEval(opts *RootOptions, programPath, exprJSON string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	program, _, err := LoadProgram(programPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	expr, err := ir.UnmarshalExpr([]byte(exprJSON))
	if err != nil {
		msg := fmt.Sprintf("parsing expression: %v", err)
		_ = formatter.Error(ErrCodeBadDocument, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	eng, err := engine.New(program)
	if err != nil {
		msg := fmt.Sprintf("building engine: %v", err)
		_ = formatter.Error(ErrCodeInvalid, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	defer eng.Stop()

	result := eng.Evaluate(expr)

	if formatter.Format == "json" {
		data, err := ir.MarshalValue(result)
		if err != nil {
			return WrapExitError(ExitFailure, "encoding result", err)
		}
		return formatter.Success(EvalResult{
			Undefined: ir.IsUndefined(result),
			Value:     data,
		})
	}

	if ir.IsUndefined(result) {
		fmt.Fprintln(formatter.Writer, "undefined")
		return nil
	}
	if _, ok := result.(ir.Null); ok {
		fmt.Fprintln(formatter.Writer, "null")
		return nil
	}
	fmt.Fprintln(formatter.Writer, ir.Render(result))
	return nil
}

// reportLoadError prints a load failure and wraps it with the command
// error exit code.
func reportLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Message)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return NewExitError(ExitCommandError, err.Error())
}
