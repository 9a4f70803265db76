// Command catalog-import bulk-loads supplier catalog feeds into PostgreSQL.
//
// Feeds are gzip-compressed files of newline-delimited JSON, one product per
// line. Files are decompressed and parsed concurrently; writes are serialized
// through a single upserter that dedupes SKUs across all feeds with a bloom
// filter, so the first feed listing a SKU wins.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/averlon/podstore/internal/domain/product"
	"github.com/averlon/podstore/internal/storage/postgres"
)

const (
	// bloomCapacity is sized for large aggregator feeds. At this capacity and
	// FPR a false positive wrongly skips roughly 1 in 10k products, which an
	// import re-run with the offending feed first will pick up.
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001

	progressEvery = 100_000
)

// feedRow is one product line in a supplier feed.
type feedRow struct {
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	CategorySlug     string          `json:"category"`
	ShortDescription string          `json:"short_description"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	Stock            int             `json:"stock"`
	Featured         bool            `json:"featured"`
	Images           []string        `json:"images"`
}

func (r *feedRow) valid() bool {
	return r.SKU != "" && r.Name != "" && r.CategorySlug != "" && r.Price.IsPositive() && r.Stock >= 0
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no feed files given: pass one or more .jsonl.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewSeedStore(pool)
	rows := make(chan feedRow, 1024)

	g, gctx := errgroup.WithContext(ctx)

	// Readers: one goroutine per feed file, fanning into rows.
	readers, readCtx := errgroup.WithContext(gctx)
	for i, f := range files {
		readers.Go(readFeedFile(readCtx, i, f, rows))
	}
	g.Go(func() error {
		defer close(rows)
		return readers.Wait()
	})

	// Single writer: dedupe and upsert.
	g.Go(func() error {
		return writeRows(gctx, store, rows)
	})

	return g.Wait()
}

// readFeedFile streams one gzipped feed, sending parsed rows downstream.
// Malformed or incomplete lines are counted and skipped, not fatal.
func readFeedFile(ctx context.Context, idx int, path string, rows chan<- feedRow) func() error {
	return func() error {
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

		var total, skipped uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}

			total++
			if total%progressEvery == 0 {
				slog.Info("read progress", slog.Int("file", idx+1), slog.Uint64("rows", total))
			}

			var row feedRow
			if err := json.Unmarshal(scanner.Bytes(), &row); err != nil || !row.valid() {
				skipped++
				continue
			}

			select {
			case rows <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed read complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_rows", total),
			slog.Uint64("skipped", skipped),
		)
		return nil
	}
}

// writeRows upserts rows serially, skipping SKUs already written this run and
// creating categories on first reference.
func writeRows(ctx context.Context, store *postgres.SeedStore, rows <-chan feedRow) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	categoryIDs := make(map[string]string)

	var written, duplicates uint64
	for row := range rows {
		if seen.TestAndAddString(row.SKU) {
			duplicates++
			continue
		}

		categoryID, err := ensureCategory(ctx, store, categoryIDs, row.CategorySlug)
		if err != nil {
			return err
		}

		slug := row.Slug
		if slug == "" {
			slug = slugify(row.Name)
		}

		if _, err := store.UpsertProduct(ctx, &product.Product{
			ID:               uuid.New().String(),
			CategoryID:       categoryID,
			Name:             row.Name,
			Slug:             slug,
			SKU:              row.SKU,
			ShortDescription: row.ShortDescription,
			Description:      row.Description,
			Price:            row.Price,
			OriginalPrice:    row.OriginalPrice,
			Stock:            row.Stock,
			IsActive:         true,
			IsFeatured:       row.Featured,
			Images:           row.Images,
		}); err != nil {
			return errors.Wrapf(err, "import product %s", row.SKU)
		}

		if written++; written%progressEvery == 0 {
			slog.Info("write progress", slog.Uint64("written", written))
		}
	}

	slog.Info("import complete",
		slog.Uint64("written", written),
		slog.Uint64("duplicate_skus", duplicates),
	)
	return nil
}

// ensureCategory resolves a feed category slug to a row ID, creating the
// category on first reference.
func ensureCategory(ctx context.Context, store *postgres.SeedStore, cache map[string]string, slug string) (string, error) {
	if id, ok := cache[slug]; ok {
		return id, nil
	}

	id, err := store.UpsertCategory(ctx, &product.Category{
		ID:       uuid.New().String(),
		Name:     titleFromSlug(slug),
		Slug:     slug,
		IsActive: true,
	})
	if err != nil {
		return "", errors.Wrapf(err, "ensure category %s", slug)
	}
	cache[slug] = id
	return id, nil
}

func slugify(name string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
