package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/regprobe/internal/reporting"
)

func newRenderCmd() *cobra.Command {
	var (
		format string
		output string
	)
	renderCmd := &cobra.Command{
		Use:   "render <run.json>",
		Short: "Render a saved run record as HTML, text, JUnit or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := reporting.NewRenderer(format)
			if err != nil {
				return err
			}
			run, err := reporting.LoadRun(args[0])
			if err != nil {
				return err
			}
			w, err := reporting.OpenOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := renderer.Render(w, run); err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("failed to close output: %w", err)
			}
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "output format: json, html, text or junit")
	renderCmd.Flags().StringVar(&output, "output", "", "output file (default stdout)")
	return renderCmd
}
