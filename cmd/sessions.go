package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/monitoring"
	"github.com/sells-group/contact-finder/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect finished search sessions",
	Long:  "Commands for listing, viewing, and summarizing persisted search sessions.",
}

// requireStore opens the store and fails when persistence is disabled.
func requireStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("sessions"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("store driver is none, no session history")
	}
	return st, nil
}

// -- sessions list --

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List finished sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		filter := store.SessionFilter{
			Status: model.SessionStatus(status),
			Limit:  limit,
		}
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}

		recs, err := st.ListSessions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "sessions list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}

		formatSessionsList(os.Stdout, recs)
		return nil
	},
}

// -- sessions show --

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetSession(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "sessions show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- sessions stats --

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate session and hit-rate statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st, nil).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "sessions stats")
		}

		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().String("status", "", "filter by status (completed, stopped, errored)")
	sessionsListCmd.Flags().Int("limit", 50, "max number of sessions to display")
	sessionsListCmd.Flags().Duration("since", 0, "only sessions created within this window (e.g. 24h)")

	sessionsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsStatsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// formatSessionsList writes a tabular list of sessions to out.
func formatSessionsList(out io.Writer, recs []model.SessionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPROCESSED\tFOUND\tCREATED\tDURATION")
	for _, r := range recs {
		found := 0
		for _, row := range r.Results {
			if row.Email != model.SentinelNotFound && row.Email != model.SentinelError && row.Email != "" {
				found++
			}
		}
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			r.ID, r.Status, r.Processed, r.Total, found,
			r.CreatedAt.Format("2006-01-02 15:04"), dur,
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes a monitoring snapshot as a short report.
func formatSnapshot(out io.Writer, s *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Sessions:\t%d (completed %d, stopped %d, errored %d)\n",
		s.SessionsTotal, s.SessionsCompleted, s.SessionsStopped, s.SessionsErrored)
	_, _ = fmt.Fprintf(w, "Error rate:\t%.1f%%\n", s.SessionErrorRate*100)
	_, _ = fmt.Fprintf(w, "Units processed:\t%d\n", s.UnitsProcessed)
	_, _ = fmt.Fprintf(w, "Contacts found:\t%d\n", s.ContactsFound)
	_, _ = fmt.Fprintf(w, "Emails found:\t%d (%.1f%%, %d errors)\n", s.EmailsFound, s.EmailHitRate*100, s.EmailErrors)
	_ = w.Flush()
}
