package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/scoring"
)

var (
	scoreInput       string
	scoreFormat      string
	scoreSave        bool
	scoreConcurrency int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one applicant from flags or a batch from a file",
	Long: "Scores applicants and prints the explanation. Profiles come from flags " +
		"or from --input (.json, .yaml, .yml or .csv). Files may hold many profiles; " +
		"they are scored concurrently and reported in input order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scoreFormat != "table" && scoreFormat != "json" {
			return eris.Errorf("unknown format %q (want table or json)", scoreFormat)
		}

		profiles, err := collectProfiles(cmd)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, envOptions{Store: scoreSave})
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := scoreConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		results := scoreAll(ctx, env.Engine, profiles, concurrency)

		if scoreSave {
			if env.Store == nil {
				zap.L().Warn("store disabled, results not saved")
			} else if err := saveResults(ctx, env, results); err != nil {
				return err
			}
		}

		if err := writeResults(os.Stdout, results, scoreFormat); err != nil {
			return err
		}

		// A single profile that failed is a command failure. Batches report
		// per-row errors in their output instead.
		if len(results) == 1 && results[0].err != nil {
			return results[0].err
		}
		return nil
	},
}

func init() {
	f := scoreCmd.Flags()
	f.StringVarP(&scoreInput, "input", "i", "", "profile file (.json, .yaml, .yml or .csv)")
	f.StringVar(&scoreFormat, "format", "table", "output format (table or json)")
	f.BoolVar(&scoreSave, "save", false, "persist scored applications to the store")
	f.IntVar(&scoreConcurrency, "concurrency", 0, "parallel evaluations (default from config)")
	addProfileFlags(f)
	rootCmd.AddCommand(scoreCmd)
}

// collectProfiles reads --input or builds a single profile from flags.
func collectProfiles(cmd *cobra.Command) ([]model.ApplicantProfile, error) {
	p, fromFlags, err := profileFromFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	switch {
	case scoreInput != "" && fromFlags:
		return nil, eris.New("use either --input or profile flags, not both")
	case scoreInput != "":
		return readProfiles(scoreInput)
	case fromFlags:
		return []model.ApplicantProfile{p}, nil
	default:
		return nil, eris.New("no applicant given (use --input or profile flags such as --age and --income)")
	}
}

// scoredProfile is one row of a batch.
type scoredProfile struct {
	Index   int                    `json:"index"`
	Name    string                 `json:"name"`
	Profile model.ApplicantProfile `json:"-"`
	Result  *model.ScoreResult     `json:"result,omitempty"`
	ID      string                 `json:"id,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Fields  []scoring.FieldError   `json:"fields,omitempty"`

	err error
}

// scorer is the part of the engine a batch needs.
type scorer interface {
	Score(ctx context.Context, profile model.ApplicantProfile) (model.ScoreResult, error)
}

// scoreAll evaluates profiles with at most concurrency in flight. Results
// keep input order. A failed profile does not stop the batch.
func scoreAll(ctx context.Context, engine scorer, profiles []model.ApplicantProfile, concurrency int) []scoredProfile {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]scoredProfile, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range profiles {
		g.Go(func() error {
			row := scoredProfile{Index: i + 1, Name: p.DisplayName(), Profile: p}
			res, err := engine.Score(gctx, p)
			if err != nil {
				row.err = err
				row.Error = err.Error()
				var verr *scoring.ValidationError
				if errors.As(err, &verr) {
					row.Error = "validation failed"
					row.Fields = verr.Fields
				}
				zap.L().Debug("profile failed",
					zap.Int("index", row.Index),
					zap.String("name", row.Name),
					zap.Error(err),
				)
			} else {
				row.Result = &res
			}
			results[i] = row
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	if len(profiles) > 1 {
		zap.L().Info("batch scored",
			zap.Int("profiles", len(profiles)),
			zap.Int("failed", failed),
			zap.Int("concurrency", concurrency),
		)
	}
	return results
}

// saveResults persists every successful row and records the assigned IDs.
func saveResults(ctx context.Context, env *scoringEnv, results []scoredProfile) error {
	apps := make([]*model.Application, 0, len(results))
	rows := make([]int, 0, len(results))
	for i, r := range results {
		if r.Result == nil {
			continue
		}
		apps = append(apps, &model.Application{Profile: r.Profile, Result: *r.Result})
		rows = append(rows, i)
	}
	if len(apps) == 0 {
		return nil
	}

	n, err := env.Store.SaveApplications(ctx, apps)
	if err != nil {
		return eris.Wrap(err, "save applications")
	}
	for j, i := range rows {
		results[i].ID = apps[j].ID
	}
	zap.L().Info("applications saved", zap.Int("count", n))
	return nil
}

// writeResults renders results as an explanation (one profile), a table
// (many profiles) or JSON.
func writeResults(out io.Writer, results []scoredProfile, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}

	if len(results) == 1 {
		r := results[0]
		if r.Result == nil {
			formatFailure(out, r)
			return nil
		}
		_, err := fmt.Fprint(out, scoring.RenderExplanation(*r.Result))
		return err
	}

	formatScoreTable(out, results)
	return nil
}

func formatFailure(out io.Writer, r scoredProfile) {
	_, _ = fmt.Fprintf(out, "%s: %s\n", r.Name, r.Error)
	for _, f := range r.Fields {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", f.Field, f.Reason)
	}
}

// formatScoreTable writes one line per profile to out.
func formatScoreTable(out io.Writer, results []scoredProfile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNAME\tSCORE\tTIER\tDEGRADED\tTOP FACTOR\tERROR")
	for _, r := range results {
		if r.Result == nil {
			msg := r.Error
			if len(r.Fields) > 0 {
				msg = fmt.Sprintf("%s: %s", r.Fields[0].Field, r.Fields[0].Reason)
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\t%s\n", r.Index, r.Name, msg)
			continue
		}
		top := "-"
		if f, ok := r.Result.TopFactor(); ok {
			top = f.Label
		}
		degraded := "no"
		if r.Result.Degraded {
			degraded = "yes"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
			r.Index, r.Name, r.Result.Score, r.Result.Tier, degraded, top)
	}
	_ = w.Flush()
}
