package main

import (
	"github.com/spf13/cobra"

	"github.com/Velocity-Developer/newads/internal/app"
	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/usecase"
)

var stageDescriptions = map[string]string{
	usecase.StepFetchTerms:     "Fetch zero-click search terms and store new ones",
	usecase.StepAnalyzeTerms:   "Classify unlabeled terms as relevant or negative",
	usecase.StepSubmitTerms:    "Submit negative terms as EXACT negative keywords",
	usecase.StepProcessPhrases: "Split negative terms into blacklist-filtered phrases",
	usecase.StepAnalyzePhrases: "Classify unlabeled phrases by language",
	usecase.StepSubmitPhrases:  "Submit local-language phrases as PHRASE negative keywords",
}

func newStageCmd(name string) *cobra.Command {
	var (
		batchSize int
		apply     bool
		mode      string
	)
	submits := name == usecase.StepSubmitTerms || name == usecase.StepSubmitPhrases

	cmd := &cobra.Command{
		Use:   name,
		Short: stageDescriptions[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := usecase.StageOptions{BatchSize: batchSize}
			if submits {
				m, err := resolveMode(mode, apply)
				if err != nil {
					return err
				}
				opts.Mode = m
			}
			return withApp(func(a *app.Application) error {
				_, err := a.RunStage(cmd.Context(), name, opts)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "maximum items to process (0 = unlimited)")
	if submits {
		cmd.Flags().BoolVar(&apply, "apply", false, "execute the submission instead of validating it")
		cmd.Flags().StringVar(&mode, "mode", string(domain.ModeValidate), "submission mode: validate or execute (--apply implies execute)")
	}
	return cmd
}

func init() {
	for _, name := range usecase.StepOrder {
		rootCmd.AddCommand(newStageCmd(name))
	}
}
