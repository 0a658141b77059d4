package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

type queryFlags struct {
	checkpoint string
	asJSON     bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.checkpoint, "checkpoint", "", "checkpoint file (defaults to the configured campaign's checkpoint)")
	cmd.Flags().BoolVar(&q.asJSON, "json", false, "print JSON instead of a table")
}

// reader opens the checkpoint offline. Without --checkpoint the campaign
// config is loaded to find it.
func (q *queryFlags) reader(root *rootFlags, cmd *cobra.Command) (*history.Reader, error) {
	path := q.checkpoint
	if path == "" {
		cfg, err := root.loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		path = cfg.Exploration.CheckpointPath()
	}
	cp, err := history.LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return history.ReaderFromCheckpoint(cp), nil
}

func newTrialsCmd(root *rootFlags) *cobra.Command {
	q := &queryFlags{}
	var status, task string
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "List the trials of a campaign checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := q.reader(root, cmd)
			if err != nil {
				return err
			}
			if task != "" {
				r = r.ForTask(task)
			}
			trials := r.Trials()
			if status != "" {
				st := models.TrialStatus(status)
				if !st.Valid() {
					return fmt.Errorf("invalid status filter: %q", status)
				}
				trials = r.Filter(st)
			}
			if q.asJSON {
				return writeJSON(cmd.OutOrStdout(), trials)
			}
			space := r.Space()
			return writeTrialTable(cmd.OutOrStdout(), &space, trials)
		},
	}
	q.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "only list trials with this status")
	cmd.Flags().StringVar(&task, "task", "", "only list trials of this task")
	return cmd
}

func newBestCmd(root *rootFlags) *cobra.Command {
	q := &queryFlags{}
	var objective string
	var pareto, targetFidelity bool
	var objectives []string
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Show the best trial or the pareto front of a campaign checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := q.reader(root, cmd)
			if err != nil {
				return err
			}
			if targetFidelity {
				r = r.AtTargetFidelity()
			}
			space := r.Space()
			if pareto {
				front, err := r.ParetoFront(objectives...)
				if err != nil {
					return err
				}
				if q.asJSON {
					return writeJSON(cmd.OutOrStdout(), front)
				}
				return writeTrialTable(cmd.OutOrStdout(), &space, front)
			}
			best, err := r.Best(objective)
			if err != nil {
				return err
			}
			if q.asJSON {
				return writeJSON(cmd.OutOrStdout(), best)
			}
			return writeTrialTable(cmd.OutOrStdout(), &space, []models.Trial{best})
		},
	}
	q.register(cmd)
	cmd.Flags().StringVar(&objective, "objective", "", "objective to rank by (defaults to the first)")
	cmd.Flags().BoolVar(&pareto, "pareto", false, "print the pareto front instead of a single trial")
	cmd.Flags().BoolVar(&targetFidelity, "target-fidelity", false, "only rank trials evaluated at the target fidelity")
	cmd.Flags().StringSliceVar(&objectives, "objectives", nil, "objectives of the pareto front (all when empty)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTrialTable prints one row per trial with a column for every varying
// parameter and output of the space.
func writeTrialTable(w io.Writer, space *models.Space, trials []models.Trial) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"ID", "STATUS", "WORKER"}
	for _, vp := range space.Varying {
		header = append(header, vp.Name)
	}
	header = append(header, space.OutputNames()...)
	header = append(header, "DURATION", "ERROR")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, tr := range trials {
		row := []string{fmt.Sprint(tr.ID), string(tr.Status), "-"}
		if tr.RanOn != nil {
			row[2] = fmt.Sprint(*tr.RanOn)
		}
		for _, vp := range space.Varying {
			row = append(row, formatFloat(tr.Parameters[vp.Name]))
		}
		for _, name := range space.OutputNames() {
			if v, ok := tr.Output(name); ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "-")
			}
		}
		duration := "-"
		if d := tr.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		row = append(row, duration, tr.Error)
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

// formatValues renders a name/value map as "a=1 b=2" in name order.
func formatValues(values map[string]float64) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + formatFloat(values[name])
	}
	return strings.Join(parts, " ")
}
