package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-sync/internal/duckdb"
	"github.com/inodb/vibe-sync/internal/engine"
	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/output"
	"github.com/inodb/vibe-sync/internal/session"
	"github.com/inodb/vibe-sync/internal/translate"
)

// tableLookup finds the sealed table of a genome on a chromosome.
type tableLookup func(genome, chrom string) (*offset.Table, error)

func newTranslateCmd() *cobra.Command {
	var (
		snapshotFile string
		vcfFile      string
		buildID      string
		dbPath       string
		genome       string
		chrom        string
		from         string
	)

	cmd := &cobra.Command{
		Use:   "translate <pos>...",
		Short: "Translate positions between reference, native and meta coordinates",
		Long: `Translate projects each position of one genome into the reference, native
and meta coordinate spaces. Tables come from a snapshot file, a VCF (built or
restored from the snapshot cache) or a build exported to DuckDB.`,
		Example: `  vibe-sync translate --snapshot samples.vsyn --genome NA1 --chrom 1 1000 2000
  vibe-sync translate --vcf samples.vcf.gz --genome NA1 --chrom 1 --from meta 1005
  vibe-sync translate --duckdb offsets.duckdb --build <id> --genome NA1 --chrom 1 1000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := parseSpace(from)
			if err != nil {
				return usageError{err}
			}
			positions := make([]int64, len(args))
			for i, a := range args {
				p, err := strconv.ParseInt(a, 10, 64)
				if err != nil || p < 0 {
					return usageError{fmt.Errorf("invalid position %q", a)}
				}
				positions[i] = p
			}

			logger, err := loggerFromConfig()
			if err != nil {
				return usageError{err}
			}
			defer logger.Sync()

			if dbPath == "" {
				dbPath = viper.GetString("duckdb.path")
			}
			lookup, closeFn, err := openLookup(cmd.Context(), logger, snapshotFile, vcfFile, dbPath, buildID)
			if err != nil {
				return err
			}
			defer closeFn()

			t, err := lookup(genome, chrom)
			if err != nil {
				return err
			}

			tw := output.NewTabWriter(os.Stdout)
			if err := tw.WriteHeader(); err != nil {
				return err
			}
			for _, pos := range positions {
				tr, err := translatePosition(t, space, pos)
				if err != nil {
					return err
				}
				if err := tw.Write(tr); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&snapshotFile, "snapshot", "", "Snapshot file written by build --output")
	cmd.Flags().StringVar(&vcfFile, "vcf", "", "VCF file to build or restore from the cache")
	cmd.Flags().StringVar(&dbPath, "duckdb", "", "DuckDB database holding exported builds (default: duckdb.path)")
	cmd.Flags().StringVar(&buildID, "build", "", "Build id in the DuckDB database")
	cmd.Flags().StringVar(&genome, "genome", "", "Genome track id (required)")
	cmd.Flags().StringVar(&chrom, "chrom", "", "Chromosome (required)")
	cmd.Flags().StringVar(&from, "from", string(output.Reference), "Coordinate space of the input: reference, native or meta")
	cmd.MarkFlagRequired("genome")
	cmd.MarkFlagRequired("chrom")
	cmd.MarkFlagsMutuallyExclusive("snapshot", "vcf", "build")

	return cmd
}

func parseSpace(s string) (output.Space, error) {
	switch sp := output.Space(s); sp {
	case output.Reference, output.Native, output.Meta:
		return sp, nil
	}
	return "", fmt.Errorf("unknown coordinate space %q (want reference, native or meta)", s)
}

// openLookup selects the table source given on the command line.
func openLookup(ctx context.Context, logger *zap.Logger, snapshotFile, vcfFile, dbPath, buildID string) (tableLookup, func(), error) {
	noop := func() {}
	switch {
	case snapshotFile != "":
		snap, err := readSnapshotFile(snapshotFile)
		if err != nil {
			return nil, noop, err
		}
		eng := engine.New()
		eng.SetLogger(logger)
		if err := eng.Restore(snap); err != nil {
			return nil, noop, fmt.Errorf("restore %s: %w", snapshotFile, err)
		}
		return eng.Table, noop, nil

	case vcfFile != "":
		mgr, err := session.New(session.Options{
			CacheDir:        viper.GetString("cache.dir"),
			Size:            1,
			Workers:         viper.GetInt("workers"),
			SplitHaplotypes: viper.GetBool("vcf.split_haplotypes"),
		})
		if err != nil {
			return nil, noop, err
		}
		mgr.SetLogger(logger)
		s, err := mgr.Open(ctx, vcfFile)
		var buildErr *engine.BuildError
		if err != nil && !errors.As(err, &buildErr) {
			return nil, noop, err
		}
		if buildErr != nil {
			logger.Warn("some chromosomes failed to build", zap.Error(buildErr))
		}
		return s.Engine.Table, noop, nil

	case buildID != "":
		if dbPath == "" {
			return nil, noop, usageError{errors.New("--build requires --duckdb")}
		}
		store, err := duckdb.Open(dbPath)
		if err != nil {
			return nil, noop, err
		}
		return storeLookup(store, buildID), func() { store.Close() }, nil
	}
	return nil, noop, usageError{errors.New("one of --snapshot, --vcf or --build is required")}
}

// storeLookup reads tables of an exported build. A track without entries is
// the identity table of a chromosome with no variants.
func storeLookup(store *duckdb.Store, buildID string) tableLookup {
	return func(genome, chrom string) (*offset.Table, error) {
		entries, err := store.LookupTrack(buildID, chrom, genome)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			ok, err := store.HasTrack(buildID, chrom, genome)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("genome %s on %s in build %s: %w", genome, chrom, buildID, engine.ErrUnknownGenome)
			}
		}
		return offset.FromEntries(genome, chrom, entries)
	}
}

// translatePosition projects pos, given in space from, into all three
// coordinate spaces of t.
func translatePosition(t *offset.Table, from output.Space, pos int64) (*output.Translation, error) {
	tr := &output.Translation{
		Genome: t.Genome(),
		Chrom:  t.Chromosome(),
		From:   from,
		Input:  pos,
	}

	var err error
	switch from {
	case output.Reference:
		tr.Reference = translate.Result{Position: pos}
		if tr.Native, err = translate.ToNative(t, pos); err != nil {
			return nil, err
		}
		if tr.Meta, err = translate.ToMeta(t, pos); err != nil {
			return nil, err
		}
	case output.Native:
		tr.Native = translate.Result{Position: pos}
		if tr.Reference, err = translate.ToReferenceFromNative(t, pos); err != nil {
			return nil, err
		}
		if tr.Meta, err = translate.NativeToMeta(t, pos); err != nil {
			return nil, err
		}
	case output.Meta:
		tr.Meta = translate.Result{Position: pos}
		if tr.Reference, err = translate.ToReferenceFromMeta(t, pos); err != nil {
			return nil, err
		}
		if tr.Native, err = translate.ToNative(t, tr.Reference.Position); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown coordinate space %q", from)
	}

	if tr.Extra, err = t.ExtraOffsetAt(tr.Reference.Position); err != nil {
		return nil, err
	}
	return tr, nil
}
