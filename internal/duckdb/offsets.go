package duckdb

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-sync/internal/offset"
	"github.com/inodb/vibe-sync/internal/snapshot"
)

// ErrBuildNotFound is returned when a build id is not in the store.
var ErrBuildNotFound = errors.New("build not found")

// Build describes one exported snapshot.
type Build struct {
	ID          string
	Source      string
	CreatedAt   time.Time
	Chromosomes int64
	Genomes     int64 // distinct genome tracks
}

// WriteSnapshot exports every track of snap under a new build id and returns
// the id. Entries are batch-inserted with the Appender API.
func (s *Store) WriteSnapshot(source string, snap *snapshot.Snapshot) (string, error) {
	id := uuid.NewString()

	genomes := make(map[string]bool)
	for _, c := range snap.Chromosomes {
		for _, t := range c.Tracks {
			genomes[t.Genome] = true
		}
	}

	if _, err := s.db.Exec(`INSERT INTO builds VALUES (?, ?, ?, ?, ?)`,
		id, source, time.Now().UTC(), int64(len(snap.Chromosomes)), int64(len(genomes))); err != nil {
		return "", fmt.Errorf("insert build: %w", err)
	}

	if err := s.insertTracks(id, snap); err != nil {
		s.DeleteBuild(id)
		return "", err
	}
	if err := s.appendEntries(id, snap); err != nil {
		s.DeleteBuild(id)
		return "", err
	}
	return id, nil
}

// insertTracks lists every track of the build, including tracks without
// entries on a chromosome with no variants.
func (s *Store) insertTracks(id string, snap *snapshot.Snapshot) error {
	stmt, err := s.db.Prepare(`INSERT INTO tracks VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range snap.Chromosomes {
		for _, t := range c.Tracks {
			if _, err := stmt.Exec(id, c.Name, t.Genome, int64(len(t.Entries))); err != nil {
				return fmt.Errorf("insert track %s on %s: %w", t.Genome, c.Name, err)
			}
		}
	}
	return nil
}

// HasTrack reports whether the build holds a table for genome on chrom.
func (s *Store) HasTrack(buildID, chrom, genome string) (bool, error) {
	var n int64
	err := s.db.QueryRow(`SELECT count(*) FROM tracks WHERE build_id=? AND chrom=? AND genome=?`,
		buildID, chrom, genome).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query track: %w", err)
	}
	return n > 0, nil
}

func (s *Store) appendEntries(id string, snap *snapshot.Snapshot) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "offset_entries")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, c := range snap.Chromosomes {
		for _, t := range c.Tracks {
			for _, e := range t.Entries {
				if err := appender.AppendRow(
					id, c.Name, t.Genome,
					e.Position, e.NativeOffset, e.MetaOffset, e.ExtraOffset(),
				); err != nil {
					return fmt.Errorf("append offset entry: %w", err)
				}
			}
		}
	}

	return appender.Flush()
}

// LookupTrack returns the entries of one genome on one chromosome in
// position order.
func (s *Store) LookupTrack(buildID, chrom, genome string) ([]offset.Entry, error) {
	rows, err := s.db.Query(`SELECT ref_pos, native_offset, meta_offset
		FROM offset_entries
		WHERE build_id=? AND chrom=? AND genome=?
		ORDER BY ref_pos`,
		buildID, chrom, genome)
	if err != nil {
		return nil, fmt.Errorf("query track: %w", err)
	}
	defer rows.Close()

	var entries []offset.Entry
	for rows.Next() {
		var e offset.Entry
		if err := rows.Scan(&e.Position, &e.NativeOffset, &e.MetaOffset); err != nil {
			return nil, fmt.Errorf("scan offset entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offset entries: %w", err)
	}
	return entries, nil
}

// ExtraOffsetsAt returns, per genome, the meta padding in effect at pos on
// chrom. Every track of the build on chrom is listed.
func (s *Store) ExtraOffsetsAt(buildID, chrom string, pos int64) (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT g.genome, COALESCE(e.extra, 0)
		FROM (SELECT genome FROM tracks WHERE build_id=? AND chrom=?) g
		LEFT JOIN (
			SELECT genome, arg_max(extra_offset, ref_pos) AS extra
			FROM offset_entries
			WHERE build_id=? AND chrom=? AND ref_pos<=?
			GROUP BY genome
		) e ON g.genome = e.genome`,
		buildID, chrom, buildID, chrom, pos)
	if err != nil {
		return nil, fmt.Errorf("query extra offsets: %w", err)
	}
	defer rows.Close()

	extras := make(map[string]int64)
	for rows.Next() {
		var genome string
		var extra int64
		if err := rows.Scan(&genome, &extra); err != nil {
			return nil, fmt.Errorf("scan extra offset: %w", err)
		}
		extras[genome] = extra
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extra offsets: %w", err)
	}
	return extras, nil
}

// Builds lists the exported builds, oldest first.
func (s *Store) Builds() ([]Build, error) {
	rows, err := s.db.Query(`SELECT build_id, source, created_at, chromosomes, genomes
		FROM builds ORDER BY created_at, build_id`)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Source, &b.CreatedAt, &b.Chromosomes, &b.Genomes); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// DeleteBuild removes a build and its entries.
func (s *Store) DeleteBuild(buildID string) error {
	if _, err := s.db.Exec("DELETE FROM offset_entries WHERE build_id=?", buildID); err != nil {
		return fmt.Errorf("delete offset entries: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM tracks WHERE build_id=?", buildID); err != nil {
		return fmt.Errorf("delete tracks: %w", err)
	}
	res, err := s.db.Exec("DELETE FROM builds WHERE build_id=?", buildID)
	if err != nil {
		return fmt.Errorf("delete build: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", buildID, ErrBuildNotFound)
	}
	return nil
}
