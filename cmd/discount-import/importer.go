package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	maxLineBytes  = 1 << 20
	progressEvery = 10_000
)

// record is one decoded line, or the reason it could not be decoded.
type record struct {
	file string
	line int
	d    discount.Discount
	err  error
}

// Stats summarises an import run.
type Stats struct {
	Imported int
	Skipped  int
	Invalid  int
}

// importer deduplicates names across every file and against the store. The
// bloom filter answers "definitely new" without touching the exact set.
type importer struct {
	svc    *discount.Service
	filter *bloom.BloomFilter
	seen   map[string]struct{}
	stats  Stats
}

func newImporter(ctx context.Context, svc *discount.Service) (*importer, error) {
	existing, err := svc.List(ctx, discount.ListFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "list existing discounts")
	}

	imp := &importer{
		svc:    svc,
		filter: bloom.NewWithEstimates(max(bloomCapacity, uint(2*len(existing))), bloomFPR),
		seen:   make(map[string]struct{}, len(existing)),
	}
	for _, d := range existing {
		imp.remember(nameKey(d.Name))
	}
	return imp, nil
}

func (imp *importer) remember(key string) {
	imp.filter.AddString(key)
	imp.seen[key] = struct{}{}
}

func (imp *importer) duplicate(key string) bool {
	if !imp.filter.TestString(key) {
		return false
	}
	_, ok := imp.seen[key]
	return ok
}

// Run decodes files concurrently and creates their discounts one at a time.
func (imp *importer) Run(ctx context.Context, files []string) (Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan record, 256)

	var decoders sync.WaitGroup
	for _, f := range files {
		decoders.Add(1)
		g.Go(func() error {
			defer decoders.Done()
			return decodeFile(gctx, f, records)
		})
	}
	go func() {
		decoders.Wait()
		close(records)
	}()

	g.Go(func() error {
		for r := range records {
			// Stop creating once a decoder has failed or the run was cancelled.
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := imp.consume(gctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return imp.stats, err
	}
	return imp.stats, nil
}

func (imp *importer) consume(ctx context.Context, r record) error {
	if r.err != nil {
		imp.stats.Invalid++
		slog.Warn("invalid record",
			slog.String("file", r.file),
			slog.Int("line", r.line),
			slog.String("error", r.err.Error()),
		)
		return nil
	}

	key := nameKey(r.d.Name)
	if key != "" && imp.duplicate(key) {
		imp.stats.Skipped++
		slog.Debug("duplicate discount name", slog.String("name", r.d.Name), slog.String("file", r.file))
		return nil
	}

	created, err := imp.svc.Create(ctx, r.d)
	switch {
	case errors.Is(err, discount.ErrValidation):
		imp.stats.Invalid++
		slog.Warn("invalid discount",
			slog.String("file", r.file),
			slog.Int("line", r.line),
			slog.String("error", err.Error()),
		)
		return nil
	case err != nil:
		return errors.Wrapf(err, "%s:%d", r.file, r.line)
	}

	imp.remember(key)
	imp.stats.Imported++
	if imp.stats.Imported%progressEvery == 0 {
		slog.Info("import progress", slog.Int("imported", imp.stats.Imported))
	}
	slog.Debug("imported discount", slog.String("id", created.ID), slog.String("name", created.Name))
	return nil
}

// decodeFile streams a gzip-compressed NDJSON file into out.
func decodeFile(ctx context.Context, path string, out chan<- record) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var line int
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}

		r := record{file: path, line: line}
		r.d, r.err = parseRecord(b)
		select {
		case out <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file decoded", slog.String("file", path), slog.Int("lines", line))
	return nil
}
