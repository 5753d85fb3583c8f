package main

import (
	"fmt"
	"os"

	"livepush/internal/config"
	"livepush/internal/gitrepo"
	"livepush/internal/history"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "livepush",
	Short: "Snapshot-branch deployment for a static site",
	Long: `Livepush builds dated live-YYYYMMDD snapshot branches of a static site,
pushes a chosen snapshot to the staging or live server over git and SSH, and
tracks the applied revision in remote REVISION/PRIOR-REVISION marker files
with single-level rollback.`,
	Version: version,
}

// Flags shared by every workflow command
var (
	configFile string
	dbPath     string
)

// Custom usage template that encourages 'help' subcommand pattern
const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} help [command]" for more information about a command.{{end}}
`

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Set custom usage template to encourage 'help' subcommand pattern
	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", getEnvOrDefault("LIVEPUSH_CONFIG_FILE", ""), "Path to livepush.yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("LIVEPUSH_DB_PATH", "./livepush.db"), "Path to the deployment history database")

	// Register subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves and loads livepush.yaml, searching the standard
// locations when no explicit path was given.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		found, err := config.Find()
		if err != nil {
			return nil, fmt.Errorf("no %s found; use --config to point at one: %w", config.FileName, err)
		}
		path = found
	}
	return config.Load(path)
}

// openRepo opens the git repository enclosing the current directory.
func openRepo() (*gitrepo.Repo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	return gitrepo.Open(cwd)
}

// openJournal opens the deployment history database, degrading to nil on
// failure: deployment must never depend on local bookkeeping.
func openJournal() *history.Journal {
	journal, err := history.NewJournal(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: deployment history unavailable (%v), continuing without it\n", err)
		return nil
	}
	return journal
}
