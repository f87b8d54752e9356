package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftui/weft/internal/engine"
	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Action  string
	Payload string
	Journal string
}

// RunResult is the JSON payload for a completed run.
type RunResult struct {
	Action string          `json:"action,omitempty"`
	State  json.RawMessage `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program-file>",
		Short: "Run a program and print the resulting state",
		Long: `Load a program document, optionally dispatch an action, and print the
resulting state.

The program's state initializes exactly as it would in a host: declared
initials first, deferred initial expressions resolved once against the
partially built store. With --action the named action is dispatched with
the --payload value bound as the event. With --journal every mutation is
appended to a SQLite journal that the trace command can read back.

Examples:
  weft run app.json
  weft run app.json --action addTodo --payload '{"text":"milk"}'
  weft run app.yaml --action bump --journal ./app.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "action to dispatch after initialization")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON event payload for the dispatched action")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite mutation journal (created if absent)")

	return cmd
}

func runProgram(opts *RunOptions, programPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	program, doc, err := LoadProgram(programPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	logger.Debug("program loaded", "path", programPath, "fields", len(program.State), "actions", len(program.Actions))

	engineOpts := []engine.EngineOption{engine.WithLogger(logger)}

	if opts.Journal != "" {
		journal, err := store.OpenJournal(opts.Journal)
		if err != nil {
			msg := fmt.Sprintf("opening journal: %v", err)
			_ = formatter.Error(ErrCodeJournal, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				logger.Error("closing journal", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts,
			engine.WithJournal(journal),
			engine.WithProgramHash(ir.ProgramHash(doc)),
		)
		logger.Debug("journal open", "path", opts.Journal)
	}

	eng, err := engine.New(program, engineOpts...)
	if err != nil {
		msg := fmt.Sprintf("building engine: %v", err)
		_ = formatter.Error(ErrCodeInvalid, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	defer eng.Stop()

	if opts.Action != "" {
		var payload ir.Value
		if opts.Payload != "" {
			payload, err = ir.UnmarshalValue([]byte(opts.Payload))
			if err != nil {
				msg := fmt.Sprintf("parsing payload: %v", err)
				_ = formatter.Error(ErrCodeBadDocument, msg, nil)
				return NewExitError(ExitCommandError, msg)
			}
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := eng.Dispatch(ctx, opts.Action, payload); err != nil {
			msg := fmt.Sprintf("dispatching %q: %v", opts.Action, err)
			_ = formatter.Error(ErrCodeDispatch, msg, nil)
			return NewExitError(ExitFailure, msg)
		}
		eng.Drain()
	}

	return outputState(formatter, opts.Action, eng.Store().Snapshot())
}

// outputState prints the store snapshot in the configured format.
func outputState(formatter *OutputFormatter, action string, snapshot *ir.Object) error {
	data, err := ir.MarshalValue(snapshot)
	if err != nil {
		return WrapExitError(ExitFailure, "encoding state", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(RunResult{Action: action, State: data})
	}

	for _, name := range snapshot.SortedKeys() {
		fieldJSON, err := ir.MarshalValue(snapshot.Entries[name])
		if err != nil {
			return WrapExitError(ExitFailure, "encoding state", err)
		}
		fmt.Fprintf(formatter.Writer, "%s = %s\n", name, fieldJSON)
	}
	return nil
}
