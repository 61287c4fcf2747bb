package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wisdark/observer-ward/internal/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "observer-ward %s\n", version.GetVersion())
		fmt.Fprintf(out, "API Version: %s\n", version.APIVersion)
		fmt.Fprintf(out, "Build Time: %s\n", version.BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", version.GitCommit)
		fmt.Fprintf(out, "Go Version: %s\n", version.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
