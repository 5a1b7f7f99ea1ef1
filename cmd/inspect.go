package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-scorer/internal/predictor"
	"github.com/sells-group/credit-scorer/internal/scoring"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Work with model artifacts",
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Validate a model artifact and print its inputs",
	Long:  "Loads and validates a model artifact. Without a path the configured model.path is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Model.Path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return eris.New("no model path given and model.path is empty")
		}

		a, err := predictor.Load(path)
		if err != nil {
			return err
		}
		formatArtifact(os.Stdout, path, a)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and the scoring tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		adapter, err := loadModel()
		if err != nil {
			return err
		}
		engine, err := scoring.NewEngine(cfg.Scoring, adapter)
		if err != nil {
			return err
		}

		model := "none (rule-only)"
		if a := adapter.Artifact(); a != nil {
			model = fmt.Sprintf("%s@%s (%s)", a.ID, a.Version, a.Kind)
		}
		formatConfigSummary(os.Stdout, engine, model)
		return nil
	},
}

func init() {
	modelCmd.AddCommand(modelInspectCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(configCmd)
}

// formatArtifact writes the artifact header and a table of its inputs.
func formatArtifact(out io.Writer, path string, a *predictor.Artifact) {
	_, _ = fmt.Fprintf(out, "Artifact:       %s\n", path)
	_, _ = fmt.Fprintf(out, "ID:             %s\n", a.ID)
	_, _ = fmt.Fprintf(out, "Version:        %s\n", a.Version)
	_, _ = fmt.Fprintf(out, "Kind:           %s\n", a.Kind)
	_, _ = fmt.Fprintf(out, "Positive class: %s\n", a.PositiveClass)
	switch a.Kind {
	case predictor.KindLogistic:
		_, _ = fmt.Fprintf(out, "Intercept:      %.4f\n", a.Intercept)
	case predictor.KindForest:
		_, _ = fmt.Fprintf(out, "Trees:          %d\n", len(a.Trees))
	}
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "INPUT\tLABEL\tMEAN\tSCALE\tUNDEFINED"
	if a.Kind == predictor.KindLogistic {
		header += "\tCOEF"
	}
	_, _ = fmt.Fprintln(w, header)
	for i, in := range a.Inputs {
		undefined := "-"
		if in.Undefined != nil {
			undefined = fmt.Sprintf("%g", *in.Undefined)
		}
		row := fmt.Sprintf("%s\t%s\t%g\t%g\t%s", in.Name, scoring.FeatureLabel(in.Name), in.Mean, in.Scale, undefined)
		if a.Kind == predictor.KindLogistic {
			row += fmt.Sprintf("\t%+.4f", a.Coefficients[i])
		}
		_, _ = fmt.Fprintln(w, row)
	}
	_ = w.Flush()
}

// formatConfigSummary writes the effective scoring policy.
func formatConfigSummary(out io.Writer, engine *scoring.Engine, model string) {
	c := engine.Config()
	t := engine.Tiers()
	_, _ = fmt.Fprintln(out, "Configuration OK")
	_, _ = fmt.Fprintf(out, "  Model:   %s\n", model)
	_, _ = fmt.Fprintf(out, "  Blend:   rules %.2f, model %.2f\n", c.Blend.RuleWeight, c.Blend.ModelWeight)
	_, _ = fmt.Fprintf(out, "  Tiers:   low >= %d, medium >= %d, high below\n", t.LowMin, t.MediumMin)
	_, _ = fmt.Fprintf(out, "  Rules:   %s\n", strings.Join(engine.Rules(), ", "))
	_, _ = fmt.Fprintf(out, "  Store:   %s\n", cfg.Store.Driver)
	_, _ = fmt.Fprintf(out, "  Cache:   %s\n", cfg.Cache.Driver)
}
