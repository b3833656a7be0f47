package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pipetakeoff/internal/analysis"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		page       int
		provider   string
		model      string
		apiKey     string
		promptFile string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "analyze <pdf>",
		Short: "Extract the materials on one drawing page",
		Long: `Renders the PDF, sends the chosen page to the configured vision model and
prints the parsed takeoff as JSON. The output can be fed to the export command.`,
		Example: `  pipetakeoff analyze site-plan.pdf --page 3
  pipetakeoff analyze site-plan.pdf --page 1 --provider gemini --out page1.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var customPrompt string
			if promptFile != "" {
				b, err := os.ReadFile(promptFile)
				if err != nil {
					return err
				}
				customPrompt = string(b)
			}

			res, err := a.ingest.IngestFile(ctx, args[0])
			if err != nil {
				return err
			}

			out, err := a.analysis.Analyze(ctx, analysis.Request{
				SessionID:    res.SessionID,
				PageNumber:   page,
				APIKey:       apiKey,
				CustomPrompt: customPrompt,
				Provider:     provider,
				Model:        model,
			})
			if err != nil {
				return err
			}

			body, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			if err := os.WriteFile(outPath, append(body, '\n'), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d materials -> %s\n", len(out.Materials), outPath)
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "1-based page number")
	cmd.Flags().StringVar(&provider, "provider", "", "Model provider: openai or gemini (default from LLM_PROVIDER)")
	cmd.Flags().StringVar(&model, "model", "", "Model name override")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for this call (default from the provider's env key)")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "File holding a custom prompt")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write JSON here instead of stdout")

	return cmd
}
