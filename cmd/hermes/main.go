package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "hermes",
		Short:         "Conversational assistant with media acquisition, document QA and scheduled mail",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.*)")

	root.AddCommand(serveCMD(&cfgPath), migrateCMD(&cfgPath), musicCMD(&cfgPath), selectCMD(&cfgPath), jobsCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
