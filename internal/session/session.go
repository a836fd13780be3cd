// Package session opens variant projects as sealed engines and keeps the
// most recently used ones in memory.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/inodb/vibe-sync/internal/engine"
	"github.com/inodb/vibe-sync/internal/snapshot"
	"github.com/inodb/vibe-sync/internal/vcf"
)

// DefaultSize is the number of projects kept in memory when Options.Size
// is not set.
const DefaultSize = 8

// Options configures a Manager.
type Options struct {
	CacheDir        string // snapshot cache directory; empty disables snapshots
	Size            int    // projects kept in memory
	Workers         int    // chromosome workers per build, 0 for NumCPU
	SplitHaplotypes bool   // one track per sample haplotype
}

// Session is an opened project. Its engine is sealed and read-only.
type Session struct {
	Source    snapshot.FileFingerprint
	Engine    *engine.Engine
	Report    *engine.Report // nil when restored from a snapshot
	Genomes   []string
	FromCache bool
}

// Manager opens projects, reusing in-memory engines and on-disk snapshots
// while the source file is unchanged. It is safe for concurrent use.
type Manager struct {
	logger   *zap.Logger
	opts     Options
	sessions *lru.Cache[string, *Session]
	group    singleflight.Group
}

// New creates a session manager.
func New(opts Options) (*Manager, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	m := &Manager{logger: zap.NewNop(), opts: opts}

	sessions, err := lru.NewWithEvict(opts.Size, func(key string, s *Session) {
		m.logger.Debug("evicted session", zap.String("source", s.Source.Path))
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	m.sessions = sessions
	return m, nil
}

// SetLogger sets the logger for the manager and the engines it builds.
func (m *Manager) SetLogger(l *zap.Logger) {
	m.logger = l
}

// Len returns the number of projects held in memory.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Open returns a sealed session for the VCF at path. An in-memory session is
// reused while the file is unchanged; otherwise a valid snapshot is restored,
// and failing that the project is built and its snapshot written.
//
// If some chromosomes fail to build, the session is returned together with
// the *engine.BuildError; such a session is neither kept nor snapshotted.
//
// Concurrent openers of one file share a single load. If the caller that
// started it is cancelled, the others load again under their own context.
func (m *Manager) Open(ctx context.Context, path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	src, err := snapshot.StatFile(abs)
	if err != nil {
		return nil, fmt.Errorf("stat variant file: %w", err)
	}

	key := m.sessionKey(src)
	if s, ok := m.sessions.Get(key); ok {
		return s, nil
	}

	for {
		s, err := m.share(ctx, key, src)
		// A load started by a caller that has since given up is retried
		// under ctx.
		if errors.Is(err, engine.ErrCancelled) && ctx.Err() == nil {
			continue
		}
		return s, err
	}
}

// share runs one load per key at a time; concurrent openers of the same file
// wait for it and receive the same session.
func (m *Manager) share(ctx context.Context, key string, src snapshot.FileFingerprint) (*Session, error) {
	type result struct {
		s   *Session
		err error
	}
	v, _, _ := m.group.Do(key, func() (any, error) {
		if s, ok := m.sessions.Get(key); ok {
			return result{s, nil}, nil
		}
		s, err := m.load(ctx, src)
		if err == nil {
			m.drop(src.Path, key)
			m.sessions.Add(key, s)
		}
		return result{s, err}, nil
	})
	r := v.(result)
	return r.s, r.err
}

// sessionKey identifies a session by file contents and the options its
// tracks depend on.
func (m *Manager) sessionKey(src snapshot.FileFingerprint) string {
	return src.Key() + "|split=" + strconv.FormatBool(m.opts.SplitHaplotypes)
}

// Evict drops the in-memory session of path, if any.
func (m *Manager) Evict(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	m.drop(abs, "")
}

// drop removes the sessions of the file at abs except keep. Sessions of an
// older version of the file are dropped once the new one is loaded.
func (m *Manager) drop(abs, keep string) {
	for _, key := range m.sessions.Keys() {
		if key != keep && strings.HasPrefix(key, abs+"|") {
			m.sessions.Remove(key)
		}
	}
}

func (m *Manager) load(ctx context.Context, src snapshot.FileFingerprint) (*Session, error) {
	cache := m.cacheFor(src.Path)
	if cache != nil && cache.Valid(src) {
		s, err := m.restore(cache, src)
		if err == nil {
			return s, nil
		}
		m.logger.Warn("discarding unreadable snapshot",
			zap.String("path", cache.Path()),
			zap.Error(err))
		cache.Clear()
	}

	s, err := m.build(ctx, src)
	if err != nil {
		return s, err
	}

	if cache != nil {
		if err := m.writeSnapshot(cache, s); err != nil {
			m.logger.Warn("could not write snapshot",
				zap.String("path", cache.Path()),
				zap.Error(err))
		}
	}
	return s, nil
}

func (m *Manager) restore(cache *snapshot.Cache, src snapshot.FileFingerprint) (*Session, error) {
	snap, err := cache.Load()
	if err != nil {
		return nil, err
	}
	eng := m.newEngine()
	if err := eng.Restore(snap); err != nil {
		return nil, err
	}

	m.logger.Info("restored project from snapshot",
		zap.String("source", src.Path),
		zap.String("snapshot", cache.Path()))
	return &Session{
		Source:    src,
		Engine:    eng,
		Genomes:   snapshotGenomes(snap),
		FromCache: true,
	}, nil
}

func (m *Manager) build(ctx context.Context, src snapshot.FileFingerprint) (*Session, error) {
	parser, err := vcf.NewParser(src.Path)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	records := vcf.NewRecordSource(parser, vcf.RecordOptions{SplitHaplotypes: m.opts.SplitHaplotypes})
	genomes := records.Genomes()

	eng := m.newEngine()
	report, err := eng.BuildFromSource(ctx, genomes, records)
	var be *engine.BuildError
	if err != nil && !errors.As(err, &be) {
		return nil, err
	}

	s := &Session{Source: src, Engine: eng, Report: report, Genomes: genomes}
	if be != nil {
		m.logger.Warn("project built with failed chromosomes",
			zap.String("source", src.Path),
			zap.Int("failed", len(be.Failures)))
		return s, be
	}
	return s, nil
}

func (m *Manager) writeSnapshot(cache *snapshot.Cache, s *Session) error {
	snap, err := s.Engine.Snapshot()
	if err != nil {
		return err
	}
	return cache.Write(snap, s.Source)
}

func (m *Manager) newEngine() *engine.Engine {
	eng := engine.New()
	eng.SetLogger(m.logger)
	eng.SetWorkers(m.opts.Workers)
	return eng
}

// cacheFor returns the snapshot cache of a source file, named after the file,
// a hash of its absolute path and the track layout.
func (m *Manager) cacheFor(path string) *snapshot.Cache {
	if m.opts.CacheDir == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(path))
	name := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".gz"), ".vcf")
	name += "-" + hex.EncodeToString(sum[:])[:12]
	if m.opts.SplitHaplotypes {
		name += "-haplotypes"
	}
	return snapshot.NewCache(m.opts.CacheDir, name).
		WithParam("split_haplotypes", strconv.FormatBool(m.opts.SplitHaplotypes))
}

func snapshotGenomes(snap *snapshot.Snapshot) []string {
	seen := make(map[string]bool)
	var genomes []string
	for _, c := range snap.Chromosomes {
		for _, t := range c.Tracks {
			if !seen[t.Genome] {
				seen[t.Genome] = true
				genomes = append(genomes, t.Genome)
			}
		}
	}
	return genomes
}
