package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/questions"
)

var (
	questionsGoal  string
	questionsCount int
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Draft interview questions for a research goal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("questions"); err != nil {
			return err
		}

		qs, err := newQuestionGenerator(cfg.Anthropic).Generate(ctx, questionsGoal, questionsCount)
		if err != nil {
			return eris.Wrap(err, "questions")
		}
		for i, q := range qs {
			fmt.Fprintf(os.Stdout, "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func init() {
	questionsCmd.Flags().StringVar(&questionsGoal, "goal", "", "research goal (required)")
	questionsCmd.Flags().IntVar(&questionsCount, "count", questions.DefaultCount, "number of questions, 1-15")
	_ = questionsCmd.MarkFlagRequired("goal")
	rootCmd.AddCommand(questionsCmd)
}
