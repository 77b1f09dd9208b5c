package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/repometa"
	_ "github.com/git-pkgs/repometa/all"
	"github.com/git-pkgs/repometa/config"
)

// app holds state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string
	jsonOut    bool

	cfg *config.Config
	log *logrus.Logger
}

// newRootCommand creates a fresh command tree so tests never share flag
// state.
func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "repometa",
		Short: "Fetch and cache repository metadata",
		Long: `repometa looks up stars, forks, license, language and latest release for
repositories hosted on GitHub, GitLab and Gitea/Forgejo, caching results
between runs.

Examples:
   repometa fetch https://github.com/facebook/react
   repometa batch --file repos.txt --json
   repometa cache stats
   repometa cache clear`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./repometa.yaml or ~/.config/repometa/repometa.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(newFetchCommand(a))
	cmd.AddCommand(newBatchCommand(a))
	cmd.AddCommand(newCacheCommand(a))
	return cmd
}

// init loads configuration and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return log, nil
}

func (a *app) open() (*repometa.Service, error) {
	svc, err := repometa.Open(a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("opening service: %w", err)
	}
	return svc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMetadata prints m in the human-readable layout. Absent fields are
// skipped.
func writeMetadata(w io.Writer, name string, m *repometa.Metadata) {
	fmt.Fprintln(w, name)
	if m == nil {
		fmt.Fprintln(w, "  (unavailable)")
		return
	}
	fmt.Fprintf(w, "  stars:          %d\n", m.Stars)
	fmt.Fprintf(w, "  forks:          %d\n", m.Forks)
	fmt.Fprintf(w, "  open issues:    %d\n", m.OpenIssues)
	fmt.Fprintf(w, "  default branch: %s\n", m.DefaultBranch)
	if !m.LastUpdated.IsZero() {
		fmt.Fprintf(w, "  last updated:   %s\n", m.LastUpdated.Format("2006-01-02T15:04:05Z07:00"))
	}
	optional := []struct{ label, value string }{
		{"description", m.Description},
		{"language", m.PrimaryLanguage},
		{"license", m.License},
		{"last release", m.LastRelease},
	}
	for _, f := range optional {
		if f.value != "" {
			fmt.Fprintf(w, "  %-15s %s\n", f.label+":", f.value)
		}
	}
}
