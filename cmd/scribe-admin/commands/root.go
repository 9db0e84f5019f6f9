package commands

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	dbFile   string
	repoSlug string
	debug    bool
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "scribe-admin",
	Short: "Maintenance CLI for the Scribe Document Lifecycle Engine",
	Long: `scribe-admin operates directly on the engine's registry and document
tree: registering projects, inspecting log and rotation-chain status,
forcing rotation, and draining the mutation audit mirror's recovery queue.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "admin CLI config file (default: ~/.config/scribe/admin.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbFile, "db", "", "registry SQLite database path (default: ~/.local/share/scribe/registry.db)")
	rootCmd.PersistentFlags().StringVar(&repoSlug, "repo-slug", "scribe-admin", "repo_slug used in entry_id hashing (§3 Log)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI color even on a terminal")

	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("repo-slug", rootCmd.PersistentFlags().Lookup("repo-slug"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.config/scribe")
		viper.SetConfigType("yaml")
		viper.SetConfigName("admin")
	}

	viper.SetEnvPrefix("SCRIBE_ADMIN")
	viper.AutomaticEnv()

	// A missing admin.yaml is fine; viper's own config.yaml load isn't the
	// engine's config.Load() (that one's loaded separately per-command via
	// config.Load()) — this file only carries CLI-operator defaults like
	// --db and --repo-slug.
	_ = viper.ReadInConfig()
}

// colorEnabled decides whether to emit ANSI color: never for --no-color,
// never when stdout isn't a terminal (piped into a log file or `less`),
// otherwise yes.
func colorEnabled() bool {
	if noColor {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func resolveDBPath() string {
	if v := viper.GetString("db"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "scribe-registry.db"
	}
	dir := home + "/.local/share/scribe"
	_ = os.MkdirAll(dir, 0o755)
	return dir + "/registry.db"
}
