package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlekbai/aicfo/internal/answer"
	"github.com/atlekbai/aicfo/internal/frame"
)

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	var dataPath, locale string
	cmd := &cobra.Command{
		Use:   "render <template|->",
		Short: "Render an answer template over a JSON result set",
		Long: `Render an answer template over a JSON result set.

The data file holds a list of records. A template with any failing field
renders as the fallback apology.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := input(cmd, args[0])
			if err != nil {
				return err
			}
			rows := frame.NewResultSet(nil, nil)
			if dataPath != "" {
				raw, err := readFile(dataPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, rows); err != nil {
					return fmt.Errorf("%s: %w", dataPath, err)
				}
			}
			res := answer.NewRenderer(answer.WithLocale(answer.ParseLocale(locale))).Render(tpl, rows)
			return emit(cmd, rootOpts, res.Text, res)
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "JSON file with the result rows")
	cmd.Flags().StringVar(&locale, "locale", "ko", "marker and apology language (ko|en)")
	return cmd
}
