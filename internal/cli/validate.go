package cli

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/cobra"

	"github.com/weftui/weft/internal/ir"
)

//go:embed schema.cue
var programSchema []byte

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one schema or structural problem in a document.
type ValidationIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program-file>",
		Short: "Validate a program document",
		Long: `Validate a program document against the document schema.

Checks the document (JSON or YAML) against the embedded CUE schema, then
runs the runtime's structural checks: declared field types, action step
shapes, and write targets referencing declared state.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	doc, err := ReadProgramDocument(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	formatter.VerboseLog("Validating %s against document schema", path)

	issues := validateSchema(doc)

	// Structural checks run even when the schema already complained, so
	// a single pass reports as much as it can.
	program, parseErr := ir.UnmarshalProgram(doc)
	if parseErr != nil {
		issues = append(issues, ValidationIssue{Field: "document", Message: parseErr.Error()})
	} else {
		for _, verr := range program.Validate() {
			issues = append(issues, ValidationIssue{Field: verr.Field, Message: verr.Message})
		}
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}

	return outputValidateSuccess(formatter)
}

// validateSchema unifies the document with #Program from the embedded
// schema. JSON is a subset of CUE, so the document compiles directly.
func validateSchema(doc []byte) []ValidationIssue {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(programSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []ValidationIssue{{Field: "schema", Message: fmt.Sprintf("compiling schema: %v", err)}}
	}

	value := ctx.CompileBytes(doc, cue.Filename("program"))
	if err := value.Err(); err != nil {
		return []ValidationIssue{{Field: "document", Message: fmt.Sprintf("parsing document: %v", err)}}
	}

	unified := schema.LookupPath(cue.ParsePath("#Program")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var issues []ValidationIssue
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			issues = append(issues, ValidationIssue{
				Field:   strings.Join(e.Path(), "."),
				Message: fmt.Sprintf(format, args...),
			})
		}
		return issues
	}

	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintln(formatter.Writer, "✓ Program valid")
	return nil
}

// outputValidationErrors outputs validation failures with exit code 1.
func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    ErrCodeSchema,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n", issue.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
