package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-sync/internal/duckdb"
)

func newBuildsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List, inspect and delete builds exported to DuckDB",
		Example: `  vibe-sync builds --duckdb offsets.duckdb
  vibe-sync builds padding --duckdb offsets.duckdb <build> 1 1000
  vibe-sync builds delete --duckdb offsets.duckdb <build>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(dbPath, func(store *duckdb.Store) error {
				builds, err := store.Builds()
				if err != nil {
					return err
				}
				return writeBuilds(os.Stdout, builds)
			})
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "duckdb", "", "DuckDB database (default: duckdb.path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "padding <build> <chrom> <pos>",
		Short: "Show the meta padding of every genome at a reference position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || pos < 0 {
				return usageError{fmt.Errorf("invalid position %q", args[2])}
			}
			return withStore(dbPath, func(store *duckdb.Store) error {
				extras, err := store.ExtraOffsetsAt(args[0], args[1], pos)
				if err != nil {
					return err
				}
				return writePadding(os.Stdout, extras)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <build>",
		Short: "Delete an exported build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(dbPath, func(store *duckdb.Store) error {
				if err := store.DeleteBuild(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Deleted build %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func withStore(dbPath string, fn func(*duckdb.Store) error) error {
	if dbPath == "" {
		dbPath = viper.GetString("duckdb.path")
	}
	if dbPath == "" {
		return usageError{errors.New("no database: set --duckdb or duckdb.path")}
	}
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func writeBuilds(w io.Writer, builds []duckdb.Build) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#Build\tCreated\tChromosomes\tGenomes\tSource")
	for _, b := range builds {
		fmt.Fprintf(bw, "%s\t%s\t%d\t%d\t%s\n",
			b.ID, b.CreatedAt.UTC().Format(time.RFC3339), b.Chromosomes, b.Genomes, b.Source)
	}
	return bw.Flush()
}

func writePadding(w io.Writer, extras map[string]int64) error {
	genomes := make([]string, 0, len(extras))
	for g := range extras {
		genomes = append(genomes, g)
	}
	sort.Strings(genomes)

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#Genome\tExtra_offset")
	for _, g := range genomes {
		fmt.Fprintf(bw, "%s\t%d\n", g, extras[g])
	}
	return bw.Flush()
}
