package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Field   string // optional - filter to a single state field
}

// TraceEvent represents a single mutation in the journal timeline.
type TraceEvent struct {
	Seq   int64           `json:"seq"`
	ID    string          `json:"id"`
	Field string          `json:"field"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value"`
}

// TraceStats holds summary statistics for the journal.
type TraceStats struct {
	TotalMutations int   `json:"total_mutations"`
	Fields         int   `json:"fields"`
	LastSeq        int64 `json:"last_seq"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	ProgramHash string       `json:"program_hash,omitempty"`
	Timeline    []TraceEvent `json:"timeline"`
	Stats       TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Dump a mutation journal",
		Long: `Dump the mutation timeline recorded in a state journal.

Shows every journaled write in sequence order: which field changed, at
which path, and to what value. Mutation IDs are content-addressed, so
two runs of the same program produce identical timelines.

Examples:
  weft trace --journal ./app.db
  weft trace --journal ./app.db --field todos
  weft trace --journal ./app.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite mutation journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Field, "field", "", "filter to a single state field")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	// A missing journal file is a command error, not an empty timeline.
	// OpenJournal would happily create a fresh database at the path.
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	journal, err := store.OpenJournal(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer journal.Close()

	mutations, err := journal.Mutations()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result, err := buildTrace(mutations, opts.Field)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to decode journal", err)
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTrace converts journal rows to the trace timeline, optionally
// filtered to a single field.
func buildTrace(mutations []store.Mutation, fieldFilter string) (TraceResult, error) {
	result := TraceResult{Timeline: []TraceEvent{}}

	fields := make(map[string]bool)
	for _, m := range mutations {
		fields[m.Field] = true
		if m.Seq > result.Stats.LastSeq {
			result.Stats.LastSeq = m.Seq
		}
		if result.ProgramHash == "" {
			result.ProgramHash = m.ProgramHash
		}

		if fieldFilter != "" && m.Field != fieldFilter {
			continue
		}

		value, err := ir.MarshalValue(m.Value)
		if err != nil {
			return TraceResult{}, fmt.Errorf("mutation %s: %w", m.ID, err)
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:   m.Seq,
			ID:    m.ID,
			Field: m.Field,
			Path:  m.Path.String(),
			Value: value,
		})
	}

	result.Stats.TotalMutations = len(mutations)
	result.Stats.Fields = len(fields)
	return result, nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	if result.Stats.TotalMutations == 0 {
		fmt.Fprintln(w, "No mutations in journal")
		return nil
	}

	if result.ProgramHash != "" {
		fmt.Fprintf(w, "Program: %s\n", truncateID(result.ProgramHash))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no matching mutations)")
	}
	for _, event := range result.Timeline {
		target := event.Field
		if event.Path != "" {
			target = event.Field + "." + event.Path
		}
		fmt.Fprintf(w, "  [%d] %s = %s\n", event.Seq, target, event.Value)
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Mutations: %d\n", result.Stats.TotalMutations)
	fmt.Fprintf(w, "  Fields:          %d\n", result.Stats.Fields)
	fmt.Fprintf(w, "  Last Seq:        %d\n", result.Stats.LastSeq)

	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 24 {
		return id
	}
	return id[:16] + "..." + id[len(id)-8:]
}
