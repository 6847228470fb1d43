package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func selectCMD(cfgPath *string) *cobra.Command {
	var qualifier string
	cmd := &cobra.Command{
		Use:   "select <title>",
		Short: "Rank candidate sources for a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.selector.Select(ctx, strings.Join(args, " "), qualifier)
			if err != nil {
				return err
			}
			if res.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "no candidates found")
				return nil
			}
			rows := make([][]string, 0, len(res.Candidates))
			for i, c := range res.Candidates {
				rows = append(rows, []string{strconv.Itoa(i + 1), c.Title, c.URL, fmt.Sprintf("%.4f", c.Score)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Title", "URL", "Score"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&qualifier, "qualifier", "q", "", "artist or other qualifier")
	return cmd
}
