package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healix-ai/backend/pkg/common/config"
	"github.com/healix-ai/backend/pkg/common/database"
	"github.com/healix-ai/backend/pkg/common/kafka"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/ingestion"
	"github.com/healix-ai/backend/pkg/insights"
	"github.com/healix-ai/backend/pkg/normalizer"
	"github.com/healix-ai/backend/pkg/records"
	"github.com/healix-ai/backend/pkg/serving"
	"github.com/healix-ai/backend/pkg/training"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "healixctl",
		Short:         "Healix clinical data administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (defaults to $HEALIX_CONFIG)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(pruneRunsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}

func openDatabase() (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.GetPostgres(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return cfg, db, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.ClosePostgres()

			ctx, cancel := signalContext()
			defer cancel()

			steps := []struct {
				name string
				run  func() error
			}{
				{"records", func() error { return records.NewRepository(db).Migrate(ctx) }},
				{"ingestion_runs", ingestion.NewRunRepository(db).AutoMigrate},
				{"prediction_logs", serving.NewRepository(db).AutoMigrate},
				{"training_jobs", training.NewRepository(db).AutoMigrate},
			}
			for _, step := range steps {
				if err := step.run(); err != nil {
					return fmt.Errorf("migrating %s: %w", step.name, err)
				}
				logger.Log.WithField("step", step.name).Info("Migrated")
			}
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <patients|conditions|observations> <file>",
		Short: "Load a CSV or XLSX file into the records store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := ingestion.ParseKind(args[0])
			if err != nil {
				return err
			}
			rawPolicy, _ := cmd.Flags().GetString("policy")

			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.ClosePostgres()

			if rawPolicy == "" {
				rawPolicy = cfg.IngestFailurePolicy
			}
			policy, err := ingestion.ParsePolicy(rawPolicy)
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			table, err := ingestion.ReadTable(args[1], f)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			store := records.NewRepository(db)
			var cache insights.Cache
			if client := database.GetRedis(cfg); client != nil {
				cache = insights.NewRedisCache(client, cfg.InsightsCacheTTL)
				defer database.CloseRedis()
			}
			var publisher ingestion.Publisher
			if cfg.KafkaEnabled() {
				producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaIngestTopic)
				defer producer.Close()
				publisher = producer
			}

			svc := ingestion.NewService(
				records.NewService(store),
				normalizer.New(normalizer.Options{DecimalComma: cfg.NormalizerDecimalComma}),
				ingestion.NewRunRepository(db),
				publisher,
				policy,
			).WithInvalidator(insights.NewService(store, cache))

			report, err := svc.Ingest(ctx, ingestion.Request{Kind: kind, Filename: args[1], Table: table, Policy: policy})
			if report != nil {
				printJSON(report)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, kind.SuccessMessage())
			return nil
		},
	}
	cmd.Flags().String("policy", "", "Row failure policy: abort or skip")
	return cmd
}

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a model bundle from stored patients and conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			top, _ := cmd.Flags().GetInt("top")
			epochs, _ := cmd.Flags().GetInt("epochs")
			rate, _ := cmd.Flags().GetFloat64("learning-rate")
			l2, _ := cmd.Flags().GetFloat64("l2")
			version, _ := cmd.Flags().GetString("version")

			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.ClosePostgres()
			if out == "" {
				out = cfg.ModelBundlePath
			}

			ctx, cancel := signalContext()
			defer cancel()

			trainer := training.NewTrainer(records.NewRepository(db), training.NewRepository(db))
			job, err := trainer.Train(ctx, training.Options{
				TopN:         top,
				Epochs:       epochs,
				LearningRate: rate,
				L2:           l2,
				Version:      version,
			}, out)
			if job != nil {
				printJSON(job)
			}
			return err
		},
	}
	cmd.Flags().String("out", "", "Bundle path (defaults to MODEL_BUNDLE_PATH)")
	cmd.Flags().Int("top", 0, "Number of most common conditions to model")
	cmd.Flags().Int("epochs", 0, "Gradient descent epochs")
	cmd.Flags().Float64("learning-rate", 0, "Gradient descent step size")
	cmd.Flags().Float64("l2", 0, "Ridge penalty")
	cmd.Flags().String("version", "", "Bundle version label")
	return cmd
}

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <value>...",
		Short: "Show how raw clinical values are normalized",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decimalComma, _ := cmd.Flags().GetBool("decimal-comma")
			n := normalizer.New(normalizer.Options{DecimalComma: decimalComma})
			for _, raw := range args {
				fmt.Printf("%q\t%s\n", raw, n.Normalize(raw))
			}
			return nil
		},
	}
	cmd.Flags().Bool("decimal-comma", false, "Treat a lone comma as the decimal mark")
	return cmd
}

func pruneRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-runs",
		Short: "Delete ingestion run records older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.ClosePostgres()

			ctx, cancel := signalContext()
			defer cancel()

			cutoff := time.Now().UTC().Add(-olderThan)
			n, err := ingestion.NewRunRepository(db).CleanupBefore(ctx, cutoff)
			if err != nil {
				return err
			}
			logger.Log.WithFields(map[string]interface{}{
				"deleted": n,
				"cutoff":  cutoff.Format(time.RFC3339),
			}).Info("Pruned ingestion runs")
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Age of runs to delete")
	return cmd
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
