package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-finder/internal/export"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/session"
	"github.com/sells-group/contact-finder/internal/workunit"
)

// findJob is a batch described in a YAML file. Flags add to it.
type findJob struct {
	Domains       []string `yaml:"domains"`
	Roles         []string `yaml:"roles"`
	DomainsFile   string   `yaml:"domains_file"`
	DomainsColumn string   `yaml:"domains_column"`
	Output        string   `yaml:"output"`
}

var (
	findJobFile       string
	findDomains       []string
	findRoles         []string
	findDomainsFile   string
	findDomainsColumn string
	findOutput        string
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Run a contact search locally and write the results to a file",
	Example: `  contact-finder find --domains acme.com,globex.com --roles CEO,CFO -o contacts.csv
  contact-finder find --domains-file leads.xlsx --domains-column website --roles CFO -o contacts.xlsx
  contact-finder find --job batch.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		job, err := resolveJob(findJobFile, findJob{
			Domains:       findDomains,
			Roles:         findRoles,
			DomainsFile:   findDomainsFile,
			DomainsColumn: findDomainsColumn,
			Output:        findOutput,
		})
		if err != nil {
			return err
		}
		units, err := workunit.Expand(job.Domains, job.Roles)
		if err != nil {
			return err
		}

		env, err := initFinder(ctx, "find")
		if err != nil {
			return err
		}
		defer env.Close()

		rows, terminal, runErr := runJob(ctx, env.Manager, units)

		// Wait for the session to be persisted before the store closes.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := env.Manager.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("session did not finish cleanly", zap.Error(err))
		}

		if runErr != nil {
			return runErr
		}
		if err := writeOutput(job.Output, rows, os.Stdout); err != nil {
			return err
		}

		zap.L().Info("find complete",
			zap.String("status", string(model.StatusForTerminal(terminal))),
			zap.Int("processed", len(rows)),
			zap.Int("total", len(units)),
			zap.String("output", job.Output),
		)
		if terminal.Type == model.EventError {
			return eris.Errorf("find: session failed: %s", terminal.Message)
		}
		return nil
	},
}

// resolveJob merges the job file at path (if any) with flag values. Flag
// lists are appended; a flag output overrides the file's.
func resolveJob(path string, flags findJob) (findJob, error) {
	var job findJob
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return job, eris.Wrapf(err, "find: read job file %s", path)
		}
		if err := yaml.Unmarshal(data, &job); err != nil {
			return job, eris.Wrapf(err, "find: parse job file %s", path)
		}
	}

	job.Domains = append(job.Domains, flags.Domains...)
	job.Roles = append(job.Roles, flags.Roles...)
	if flags.DomainsFile != "" {
		job.DomainsFile = flags.DomainsFile
	}
	if flags.DomainsColumn != "" {
		job.DomainsColumn = flags.DomainsColumn
	}
	if flags.Output != "" {
		job.Output = flags.Output
	}

	if job.DomainsFile != "" {
		domains, err := export.ReadColumn(job.DomainsFile, job.DomainsColumn)
		if err != nil {
			return job, err
		}
		job.Domains = append(job.Domains, domains...)
	}
	return job, nil
}

// runJob starts a session for units and consumes its stream. A cancelled ctx
// requests a stop; the stream is still read to its terminal event.
func runJob(ctx context.Context, mgr *session.Manager, units []model.WorkUnit) ([]model.ContactRow, model.Event, error) {
	id, err := mgr.Create(units)
	if err != nil {
		return nil, model.Event{}, err
	}
	st, err := mgr.Stream(id)
	if err != nil {
		return nil, model.Event{}, err
	}
	defer st.Close()

	log := zap.L().With(zap.String("session_id", id))
	done := make(chan struct{})

	var (
		rows     []model.ContactRow
		terminal model.Event
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info("interrupt received, stopping after the current unit")
			if err := mgr.RequestStop(id); err != nil {
				log.Debug("stop ignored", zap.Error(err))
			}
		case <-done:
		}
		return nil
	})
	g.Go(func() error {
		defer close(done)
		for {
			ev, err := st.Next(context.Background())
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return eris.Wrap(err, "find: read events")
			}
			logEvent(log, ev)
			if ev.Type == model.EventResult && ev.Data != nil {
				rows = append(rows, *ev.Data)
			}
			if ev.Terminal() {
				terminal = ev
				st.Ack()
			}
		}
	})
	err = g.Wait()
	return rows, terminal, err
}

func logEvent(log *zap.Logger, ev model.Event) {
	switch ev.Type {
	case model.EventProgress:
		log.Info("searching",
			zap.Int("current", ev.Current),
			zap.Int("total", ev.Total),
			zap.String("domain", ev.Domain),
			zap.String("role", ev.Role),
		)
	case model.EventResult:
		log.Info("result",
			zap.String("domain", ev.Data.Domain),
			zap.String("name", ev.Data.Name),
			zap.String("title", ev.Data.Title),
			zap.String("email", ev.Data.Email),
		)
	case model.EventError:
		if ev.Fatal {
			log.Error("session failed", zap.String("message", ev.Message))
		} else {
			log.Warn("unit error", zap.String("message", ev.Message))
		}
	case model.EventStopped:
		log.Info("stopped", zap.Int("processed", ev.Processed))
	}
}

// writeOutput writes rows to path, as XLSX when the extension is .xlsx and
// CSV otherwise. An empty path or "-" writes CSV to stdout.
func writeOutput(path string, rows []model.ContactRow, stdout io.Writer) error {
	if path == "" || path == "-" {
		return export.WriteCSV(stdout, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "find: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = export.WriteXLSX(f, rows)
	} else {
		err = export.WriteCSV(f, rows)
	}
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "find: close %s", path)
}

func init() {
	findCmd.Flags().StringVar(&findJobFile, "job", "", "YAML job file with domains, roles and output")
	findCmd.Flags().StringSliceVar(&findDomains, "domains", nil, "comma separated domains")
	findCmd.Flags().StringSliceVar(&findRoles, "roles", nil, "comma separated roles")
	findCmd.Flags().StringVar(&findDomainsFile, "domains-file", "", "CSV or XLSX file to read domains from")
	findCmd.Flags().StringVar(&findDomainsColumn, "domains-column", "", "column holding domains (default first column)")
	findCmd.Flags().StringVarP(&findOutput, "output", "o", "", "output file, .csv or .xlsx (default CSV on stdout)")
	rootCmd.AddCommand(findCmd)
}
