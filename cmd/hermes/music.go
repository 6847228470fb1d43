package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func musicCMD(cfgPath *string) *cobra.Command {
	var thread string
	cmd := &cobra.Command{
		Use:   "music <request>",
		Short: "Run one media acquisition request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if thread == "" {
				thread = uuid.NewString()
			}
			res, err := a.engine.Run(ctx, thread, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Reply)
			if res.Artifact != "" {
				fmt.Fprintln(out, "file:", res.Artifact)
			}
			fmt.Fprintln(out, "thread:", thread)
			return nil
		},
	}
	cmd.Flags().StringVar(&thread, "thread", "", "conversation thread id (default: new)")
	return cmd
}
