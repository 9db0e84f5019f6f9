package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scribehq/dle/internal/applog"
	"github.com/scribehq/dle/internal/rotation"
)

var statusProject string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show log sizes, rotation-advisory state, and mirror backlog",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusProject, "project", "", "limit to a single project (default: all registered projects)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var projects []struct {
		Name, DocsDir string
	}
	if statusProject != "" {
		p, err := a.Engine.GetProject(ctx, statusProject)
		if err != nil {
			return err
		}
		projects = append(projects, struct{ Name, DocsDir string }{p.Name, p.DocsDir})
	} else {
		all, err := a.Engine.ListProjects(ctx)
		if err != nil {
			return err
		}
		for _, p := range all {
			projects = append(projects, struct{ Name, DocsDir string }{p.Name, p.DocsDir})
		}
	}

	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	if !colorEnabled() {
		yellow.DisableColor()
		red.DisableColor()
	}

	out := cmd.OutOrStdout()
	for _, p := range projects {
		fmt.Fprintf(out, "project %s\n", p.Name)
		for _, def := range a.Engine.Config.Logs {
			path := applog.ResolvePath(def, p.DocsDir)
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(out, "  %-14s (not yet created)\n", def.Key)
				continue
			}
			n := rotation.CountEntries(data)
			due, reason := rotation.CheckThreshold(a.Engine.Config.Rotation.ThresholdEntries, n)
			line := fmt.Sprintf("  %-14s %4d entries, %s", def.Key, n, humanize.Bytes(uint64(len(data))))
			if due {
				yellow.Fprintf(out, "%s — %s\n", line, reason)
			} else {
				fmt.Fprintf(out, "%s\n", line)
			}
		}
		pending, err := a.Engine.Audit.PendingCount(ctx)
		if err == nil && pending > 0 {
			red.Fprintf(out, "  mirror_pending: %d row(s) — run `scribe-admin reconcile`\n", pending)
		}
	}
	fmt.Fprintf(out, "doc cache: %d entr(y/ies) warm\n", a.Engine.Registry.DocCacheLen())
	return nil
}
