package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scribehq/dle/internal/create"
	"github.com/scribehq/dle/pkg/dle"
)

var (
	createProject  string
	createPath     string
	createDocType  string
	createTitle    string
	createContent  string
	createRegister bool
	createDocKey   string
	createFields   map[string]string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new document, optionally registering it (manage_docs create path)",
	RunE:  runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createProject, "project", "", "project name (required)")
	createCmd.Flags().StringVar(&createPath, "path", "", "document path, relative to docs_dir (required)")
	createCmd.Flags().StringVar(&createDocType, "doc-type", "", "doc_type to record in the registry")
	createCmd.Flags().StringVar(&createTitle, "title", "", "H1 title line")
	createCmd.Flags().StringVar(&createContent, "content", "", "raw Markdown body (written verbatim after the title)")
	createCmd.Flags().BoolVar(&createRegister, "register", false, "register the new document under --doc-key")
	createCmd.Flags().StringVar(&createDocKey, "doc-key", "", "registry key to register under (required with --register)")
	createCmd.Flags().StringToStringVar(&createFields, "field", nil, "frontmatter field (key=value, repeatable)")
	createCmd.MarkFlagRequired("project")
	createCmd.MarkFlagRequired("path")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if createRegister && createDocKey == "" {
		return fmt.Errorf("--doc-key is required with --register")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Engine.CreateDoc(context.Background(), dle.CreateDocRequest{
		Project: createProject,
		Path:    createPath,
		DocType: createDocType,
		Spec: create.Spec{
			Title:   createTitle,
			Content: createContent,
		},
		FrontmatterFields: createFields,
		Register:          createRegister,
		DocKey:            createDocKey,
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if !colorEnabled() {
		green.DisableColor()
	}
	green.Fprintf(cmd.OutOrStdout(), "created %s\n", res.Path)
	if res.Registered {
		fmt.Fprintf(cmd.OutOrStdout(), "  registered as %q\n", createDocKey)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  sha_after: %s\n", res.ShaAfter)
	return nil
}
