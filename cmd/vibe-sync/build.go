package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-sync/internal/duckdb"
	"github.com/inodb/vibe-sync/internal/engine"
	"github.com/inodb/vibe-sync/internal/output"
	"github.com/inodb/vibe-sync/internal/session"
	"github.com/inodb/vibe-sync/internal/snapshot"
)

func newBuildCmd() *cobra.Command {
	var (
		outputFile string
		dbPath     string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "build <vcf>",
		Short: "Build synchronized offset tables for every genome of a VCF",
		Long: `Build reads a sorted VCF, builds one offset table per genome and
chromosome, and prints a per-chromosome summary. Snapshots are cached under
cache.dir and reused while the VCF is unchanged.`,
		Example: `  vibe-sync build samples.vcf.gz
  vibe-sync build --split-haplotypes -o samples.vsyn samples.vcf.gz
  vibe-sync build --duckdb offsets.duckdb samples.vcf.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromConfig()
			if err != nil {
				return usageError{err}
			}
			defer logger.Sync()

			cacheDir := viper.GetString("cache.dir")
			if noCache {
				cacheDir = ""
			}
			if dbPath == "" {
				dbPath = viper.GetString("duckdb.path")
			}
			return runBuild(cmd.Context(), logger, args[0], outputFile, cacheDir, dbPath)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the project snapshot to this file")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Do not read or write the snapshot cache")
	cmd.Flags().Int("workers", 0, "Chromosome workers (0 = all CPUs)")
	cmd.Flags().Bool("split-haplotypes", false, "Build one track per sample haplotype")
	cmd.Flags().StringVar(&dbPath, "duckdb", "", "Export the sealed tables to this DuckDB database (default: duckdb.path)")
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("vcf.split_haplotypes", cmd.Flags().Lookup("split-haplotypes"))

	return cmd
}

func runBuild(ctx context.Context, logger *zap.Logger, vcfPath, outputFile, cacheDir, dbPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := session.New(session.Options{
		CacheDir:        cacheDir,
		Size:            viper.GetInt("session.size"),
		Workers:         viper.GetInt("workers"),
		SplitHaplotypes: viper.GetBool("vcf.split_haplotypes"),
	})
	if err != nil {
		return err
	}
	mgr.SetLogger(logger)

	s, err := mgr.Open(ctx, vcfPath)
	var buildErr *engine.BuildError
	switch {
	case errors.As(err, &buildErr):
		// Sealed chromosomes are still reported and exported.
	case errors.Is(err, engine.ErrCancelled):
		return fmt.Errorf("build of %s interrupted", vcfPath)
	case err != nil:
		return err
	}

	if s.Report != nil {
		if err := output.WriteSummary(os.Stdout, s.Report); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	} else {
		logger.Info("restored project from snapshot",
			zap.String("vcf", vcfPath),
			zap.Strings("chromosomes", s.Engine.Chromosomes()))
	}

	snap, err := s.Engine.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if outputFile != "" {
		if err := writeSnapshotFile(outputFile, snap); err != nil {
			return err
		}
		logger.Info("wrote snapshot", zap.String("path", outputFile))
	}

	if dbPath != "" {
		id, err := exportBuild(dbPath, s.Source.Path, snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported build %s to %s\n", id, dbPath)
	}

	if buildErr != nil {
		return buildErr
	}
	return nil
}

func writeSnapshotFile(path string, snap *snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := snapshot.Write(f, snap); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

func readSnapshotFile(path string) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()
	return snapshot.Read(f)
}

func exportBuild(dbPath, source string, snap *snapshot.Snapshot) (string, error) {
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	id, err := store.WriteSnapshot(source, snap)
	if err != nil {
		return "", fmt.Errorf("export to duckdb: %w", err)
	}
	return id, nil
}
