package rules

import (
	"context"
	"fmt"
	"github.com/clambin/thermostats/internal/app"
	ruleset "github.com/clambin/thermostats/internal/rules"
	"github.com/clambin/thermostats/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"log/slog"
	"os"
)

var (
	Cmd = cobra.Command{
		Use:   "rules",
		Short: "Manage rules",
	}
	importCmd = cobra.Command{
		Use:   "import FILE",
		Short: "Import rules from a YAML file (\"-\" reads from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.Logger(cmd.ErrOrStderr(), viper.GetBool("debug"))
			return withStore(cmd.Context(), viper.GetViper(), func(s *store.Store) error {
				return importFile(cmd.Context(), s, args[0], cmd.InOrStdin(), logger)
			})
		},
	}
	listCmd = cobra.Command{
		Use:   "list",
		Short: "List all thermostats and their rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), viper.GetViper(), func(s *store.Store) error {
				return list(cmd.Context(), s, cmd.OutOrStdout())
			})
		},
	}
)

func init() {
	Cmd.AddCommand(&importCmd, &listCmd)
}

func withStore(ctx context.Context, v *viper.Viper, f func(*store.Store) error) error {
	s, err := store.Open(ctx, v.GetString("database.path"))
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { _ = s.Close() }()
	return f(s)
}

type Store interface {
	ListThermostats(ctx context.Context) ([]ruleset.Thermostat, error)
	ListRules(ctx context.Context, thermostatID int64) ([]ruleset.Rule, error)
	ImportRules(ctx context.Context, imports []store.RuleImport) error
}

var _ Store = &store.Store{}

func importFile(ctx context.Context, s Store, path string, stdin io.Reader, logger *slog.Logger) error {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	file, err := ruleset.Load(in, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return importRules(ctx, s, file, logger)
}

// importRules replaces the rules of the thermostats named in the file. Importing the same file twice leaves the rules
// unchanged. Thermostats that have not been seen yet are created, named after their AIN. The next pass replaces that
// name with the one reported by the gateway.
func importRules(ctx context.Context, s Store, file ruleset.File, logger *slog.Logger) error {
	imports := make([]store.RuleImport, 0, len(file.Rules))
	for _, cfg := range file.Rules {
		rule, err := cfg.Rule()
		if err != nil {
			return fmt.Errorf("rule %q: %w", cfg.Name, err)
		}
		if len(cfg.Thermostats) == 0 {
			logger.Warn("rule not assigned to any thermostat. skipping", "rule", rule)
			continue
		}
		imports = append(imports, store.RuleImport{Rule: rule, Thermostats: cfg.Thermostats})
	}
	if err := s.ImportRules(ctx, imports); err != nil {
		return err
	}
	logger.Info("rules imported", "count", len(imports))
	return nil
}

func list(ctx context.Context, s Store, w io.Writer) error {
	thermostats, err := s.ListThermostats(ctx)
	if err != nil {
		return err
	}
	for _, thermostat := range thermostats {
		_, _ = fmt.Fprintln(w, thermostat.String())
		r, err := s.ListRules(ctx, thermostat.ID)
		if err != nil {
			return err
		}
		if len(r) == 0 {
			_, _ = fmt.Fprintln(w, "  no rules")
		}
		for _, rule := range r {
			_, _ = fmt.Fprintln(w, "  "+rule.String())
		}
	}
	return nil
}
