// Package main provides the co2ctl admin CLI: schema migration, workbook
// import, database checks and API smoke tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/co2charts/internal/adapters/ingest"
	repository "github.com/okian/co2charts/internal/adapters/repository"
	"github.com/okian/co2charts/internal/config"
	"github.com/okian/co2charts/internal/smoke"
	"github.com/okian/co2charts/pkg/logger"
	"github.com/spf13/cobra"
)

const sampleSize = 5

// globalFlags override the loaded configuration.
type globalFlags struct {
	driver string
	dsn    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:          "co2ctl",
		Short:        "Administer the CO2 chart database and API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.Init(logger.WithWriter(cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "Database driver: sqlite or pgx (default from config)")
	root.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "Database DSN (default from config)")

	root.AddCommand(
		newMigrateCmd(&flags),
		newImportCmd(&flags),
		newCheckCmd(&flags),
		newSmokeCmd(),
	)
	return root
}

// openStore loads config, applies flag overrides and opens the store.
func openStore(ctx context.Context, flags *globalFlags) (*repository.SQLStore, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if flags.driver != "" {
		cfg.DBDriver = flags.driver
	}
	if flags.dsn != "" {
		cfg.DBDSN = flags.dsn
	}
	return repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithMaxOpenConns(cfg.DBMaxOpenConns),
		repository.WithMaxIdleConns(cfg.DBMaxIdleConns),
	)
}

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", store.Driver())
			return nil
		},
	}
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	var (
		sheet   string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Load an emissions workbook into the database",
		Long: `Import reads a workbook whose header row names the columns
country, iso_code, surface_km2, year, co2 and population. Countries and
years are upserted; each (country, year) pair keeps one emission.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("file not found: %s", args[0])
			}

			store, err := openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if migrate {
				if err := store.Migrate(ctx); err != nil {
					return err
				}
			}

			res, err := ingest.NewImporter(store, ingest.WithSheet(sheet)).ImportFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows: %d countries, %d years, %d emissions (%d blank rows skipped)\n",
				res.Rows, res.Countries, res.Years, res.Emissions, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: first sheet)")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply migrations before importing")
	return cmd
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Print table row counts and a sample of the data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			counts, err := store.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "countries: %d\nyears:     %d\nemissions: %d\n", counts.Countries, counts.Years, counts.Emissions)

			latest, err := store.LatestYear(ctx)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				fmt.Fprintln(out, "latest year: none")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "latest year: %d\n", latest)
			}

			countries, err := store.Countries(ctx)
			if err != nil {
				return err
			}
			if len(countries) > sampleSize {
				countries = countries[:sampleSize]
			}
			ids := make([]int64, 0, len(countries))
			for _, c := range countries {
				ids = append(ids, c.ID)
			}
			records, err := store.Records(ctx, ids)
			if err != nil {
				return err
			}
			shown := map[int64]int{}
			for _, r := range records {
				if shown[r.CountryID] == sampleSize {
					continue
				}
				shown[r.CountryID]++
				co2 := "null"
				if r.CO2 != nil {
					co2 = fmt.Sprintf("%.3f", *r.CO2)
				}
				fmt.Fprintf(out, "  %-24s %d %s\n", r.CountryName, r.Year, co2)
			}
			return nil
		},
	}
}

func newSmokeCmd() *cobra.Command {
	var cfg smoke.Config
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Exercise a running API and verify payload alignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := smoke.Run(cmd.Context(), cfg)
			for _, c := range report.Checks {
				mark := "ok  "
				if !c.OK {
					mark = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", mark, c.Name, c.Detail)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", smoke.DefaultBaseURL, "Base URL of the API")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", smoke.DefaultTimeout, "HTTP request timeout")
	cmd.Flags().IntVar(&cfg.MaxCountries, "max-countries", smoke.DefaultMaxCountries, "Countries selected by the comparison check")
	return cmd
}
