package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initDocsDir        string
	initProgressLogRel string
	initDefaults       map[string]string
)

var initCmd = &cobra.Command{
	Use:   "init <name> <root>",
	Short: "Register a project's root with the engine (set_project)",
	Args:  cobra.ExactArgs(2),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initDocsDir, "docs-dir", "docs", "docs directory, relative to root")
	initCmd.Flags().StringVar(&initProgressLogRel, "progress-log", "docs/progress.md", "progress log path, relative to root")
	initCmd.Flags().StringToStringVar(&initDefaults, "default", nil, "project default frontmatter field (key=value, repeatable)")
}

func runInit(cmd *cobra.Command, args []string) error {
	name, root := args[0], args[1]

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Engine.SetProject(context.Background(), name, root, initDocsDir, initProgressLogRel, initDefaults)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if !colorEnabled() {
		green.DisableColor()
	}
	green.Fprintf(cmd.OutOrStdout(), "registered project %q\n", p.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  root:        %s\n", p.Root)
	fmt.Fprintf(cmd.OutOrStdout(), "  docs_dir:    %s\n", p.DocsDir)
	fmt.Fprintf(cmd.OutOrStdout(), "  progress_log: %s\n", p.ProgressLogPath)
	return nil
}
