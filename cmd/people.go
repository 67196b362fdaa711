package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/model"
)

var (
	peopleTitle    string
	peopleLocation string
	peopleIndustry string
	peopleLimit    int
	peopleFormat   string
	peopleOutput   string
	peopleDebug    bool
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Find verified contacts for a title and location",
	Example: `  prospect-cli people --title "VP Engineering" --location "Austin, TX" --limit 5
  prospect-cli people --title CTO --location Denver --industry fintech --format xlsx --output cto.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "people")
		if err != nil {
			return err
		}
		defer env.Close()

		req := contacts.Request{
			Title:    peopleTitle,
			Location: peopleLocation,
			Industry: peopleIndustry,
		}
		if cmd.Flags().Changed("limit") {
			l := float64(peopleLimit)
			req.Limit = &l
		}

		out, err := env.Service.Search(ctx, req)
		if err != nil {
			se := contacts.AsStepError(err)
			zap.L().Error("people search failed",
				zap.String("step", string(se.Step)),
				zap.Int("status", se.Status),
				zap.Any("details", se.Details),
			)
			return eris.Wrapf(err, "people: %s failed (status %d)", se.Step, se.Status)
		}

		zap.L().Info("people search complete",
			zap.String("run_id", out.RunID),
			zap.Int("contacts", len(out.Result.Contacts)),
		)
		return writePeopleOutput(out.Result)
	},
}

func writePeopleOutput(result *model.PipelineResult) error {
	var w io.Writer = os.Stdout
	if peopleOutput != "" {
		f, err := os.Create(peopleOutput)
		if err != nil {
			return eris.Wrap(err, "people: create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if peopleDebug {
		return export.WriteJSON(w, result)
	}
	return export.Write(w, peopleFormat, result.Contacts)
}

func init() {
	peopleCmd.Flags().StringVar(&peopleTitle, "title", "", "job title to search for (required)")
	peopleCmd.Flags().StringVar(&peopleLocation, "location", "", "person location (required)")
	peopleCmd.Flags().StringVar(&peopleIndustry, "industry", "", "optional industry keyword")
	peopleCmd.Flags().IntVar(&peopleLimit, "limit", model.DefaultLimit, "max contacts, clamped to 1-10")
	peopleCmd.Flags().StringVar(&peopleFormat, "format", export.FormatJSON, "output format: json, yaml or xlsx")
	peopleCmd.Flags().StringVarP(&peopleOutput, "output", "o", "", "write output to a file instead of stdout")
	peopleCmd.Flags().BoolVar(&peopleDebug, "debug", false, "print the full result with the debug trace as JSON")
	rootCmd.AddCommand(peopleCmd)
}
