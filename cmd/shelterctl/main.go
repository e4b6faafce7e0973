// Command shelterctl loads, imports and classifies shelter data from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mr1hm/go-evac-shelters/internal/classifier"
	"github.com/mr1hm/go-evac-shelters/internal/config"
	internalgrpc "github.com/mr1hm/go-evac-shelters/internal/grpc"
	"github.com/mr1hm/go-evac-shelters/internal/logging"
	"github.com/mr1hm/go-evac-shelters/internal/models"
	"github.com/mr1hm/go-evac-shelters/internal/repository"
)

type options struct {
	source   string
	format   string
	dbPath   string
	logLevel string
	timeout  time.Duration
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "shelterctl",
		Short:        "Inspect and import evacuation shelter data",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	root.PersistentFlags().StringVar(&opts.source, "source", "", "shelter source: bundled, sqlite, overpass, URL or file path (default $SHELTER_SOURCE)")
	root.PersistentFlags().StringVar(&opts.format, "format", "", "source format: json, geojson, csv, yaml (default inferred)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $DB_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall command timeout")

	root.AddCommand(
		newLoadCmd(opts),
		newImportCmd(opts),
		newClassifyCmd(),
		newWatchCmd(),
	)
	return root
}

// shelterConfig starts from the environment and applies flag overrides.
func (o *options) shelterConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.source != "" {
		cfg.Shelters.Source = o.source
	}
	if o.format != "" {
		cfg.Shelters.Format = o.format
	}
	if o.dbPath != "" {
		cfg.DB.Path = o.dbPath
	}
	return *cfg, nil
}

func (o *options) openRepository(cfg config.Config) (*repository.ShelterRepository, *repository.SQLiteDB, error) {
	var db *repository.SQLiteDB
	if cfg.Shelters.Kind() == config.SourceSQLite {
		var err error
		db, err = repository.NewSQLiteDB(cfg.DB.Path)
		if err != nil {
			return nil, nil, err
		}
	}

	src, err := repository.OpenSource(cfg.Shelters, db)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}
	return repository.NewShelterRepository(src, slog.Default()), db, nil
}

func newLoadCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load and validate shelters, printing a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			cfg, err := opts.shelterConfig()
			if err != nil {
				return err
			}
			repo, db, err := opts.openRepository(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			report, err := repo.Load(ctx)
			if err != nil {
				return err
			}
			if report.SourceErr != nil {
				return fmt.Errorf("error reading %s: %w", report.Source, report.SourceErr)
			}

			if asJSON {
				return writeSheltersJSON(cmd.OutOrStdout(), report.Shelters)
			}
			writeSummary(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print classified shelters as JSON")
	return cmd
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load shelters from a source and store them as the next snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			cfg, err := opts.shelterConfig()
			if err != nil {
				return err
			}
			if cfg.Shelters.Kind() == config.SourceSQLite {
				return fmt.Errorf("import needs a source other than sqlite")
			}

			repo, _, err := opts.openRepository(cfg)
			if err != nil {
				return err
			}
			report, err := repo.Load(ctx)
			if err != nil {
				return err
			}
			if report.SourceErr != nil {
				return fmt.Errorf("error reading %s: %w", report.Source, report.SourceErr)
			}

			db, err := repository.NewSQLiteDB(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			gen, err := db.Generation(ctx)
			if err != nil {
				return err
			}
			snap := &models.Snapshot{
				Generation: gen + 1,
				Source:     report.Source,
				LoadedAt:   time.Now(),
				Shelters:   report.Shelters,
			}
			if _, err := db.ReplaceSnapshot(ctx, snap); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d shelters from %s (generation %d, %d rejected)\n",
				len(snap.Shelters), snap.Source, snap.Generation, report.RejectedTotal())
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [type...]",
		Short: "Classify a shelter by its hazard types",
		Example: `  shelterctl classify 洪水 津波
  shelterctl classify flood`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := classifier.Classify(args)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c, classifier.Label(c), classifier.Color(c))
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var (
		addr     string
		category string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream snapshot updates from a running shelter-map server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("error connecting to %s: %w", addr, err)
			}
			defer conn.Close()

			req, err := structpb.NewStruct(map[string]any{"category": category})
			if err != nil {
				return err
			}
			stream, err := internalgrpc.NewClient(conn).WatchShelters(cmd.Context(), req)
			if err != nil {
				return err
			}

			for {
				msg, err := stream.Recv()
				if err == io.EOF || cmd.Context().Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				fields := msg.GetFields()
				fmt.Fprintf(cmd.OutOrStdout(), "generation %d: %d shelters from %s\n",
					int64(fields["generation"].GetNumberValue()),
					len(fields["shelters"].GetListValue().GetValues()),
					fields["source"].GetStringValue())
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC server address")
	cmd.Flags().StringVar(&category, "category", "", "only include shelters of this category")
	return cmd
}

func writeSummary(w io.Writer, report repository.Report) {
	counts := classifier.Count(report.Shelters)

	fmt.Fprintf(w, "source: %s\n", report.Source)
	fmt.Fprintf(w, "shelters: %d\n", len(report.Shelters))
	for _, c := range models.Categories {
		fmt.Fprintf(w, "  %-8s %s %d\n", c, classifier.Label(c), counts[c])
	}
	fmt.Fprintf(w, "rejected: %d\n", report.RejectedTotal())
	for _, reason := range sortedReasons(report.Rejected) {
		fmt.Fprintf(w, "  %s %d\n", reason, report.Rejected[reason])
	}
}

func sortedReasons(m map[repository.Reason]int) []repository.Reason {
	reasons := make([]repository.Reason, 0, len(m))
	for r := range m {
		reasons = append(reasons, r)
	}
	slices.Sort(reasons)
	return reasons
}

type classifiedShelter struct {
	models.Shelter
	Category models.Category `json:"category"`
	Color    string          `json:"color"`
}

func writeSheltersJSON(w io.Writer, shelters []models.Shelter) error {
	out := make([]classifiedShelter, len(shelters))
	for i, sh := range shelters {
		c := classifier.Classify(sh.Types)
		out[i] = classifiedShelter{Shelter: sh, Category: c, Color: classifier.Color(c)}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
