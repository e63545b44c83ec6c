// Command promo-ingest bulk-loads coupon codes from gzipped campaign
// exports (one code per line) into the discounts table, all sharing one
// rule template given on the command line. Duplicate codes within and
// across files are skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/selldesk/pos-core/internal/repository"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 6
	maxCodeLen    = 24
	insertBatch   = 5_000
)

const insertCouponSQL = `INSERT INTO discounts
	(id, name, description, kind, value, active, min_purchase, coupon_code, max_uses, uses)
	VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $8, 0)
	ON CONFLICT DO NOTHING`

// ruleTemplate is the discount definition stamped onto every ingested code.
type ruleTemplate struct {
	name        string
	description string
	kind        string
	value       decimal.Decimal
	minPurchase decimal.Decimal
	maxUses     int
}

func main() {
	var (
		databaseURL string
		name        string
		description string
		kind        string
		value       string
		minPurchase string
		maxUses     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&name, "name", "Promo campaign", "discount display name")
	flag.StringVar(&description, "description", "Promo code discount", "discount description")
	flag.StringVar(&kind, "kind", "percentage", "discount kind (percentage or fixed)")
	flag.StringVar(&value, "value", "10", "discount value (percentage points or amount)")
	flag.StringVar(&minPurchase, "min-purchase", "0", "minimum purchase threshold")
	flag.IntVar(&maxUses, "max-uses", 1, "usage cap per code (0 = unlimited)")
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
		slog.Error("no input files: pass one or more codes.gz paths")
		os.Exit(1)
	}

	if kind != "percentage" && kind != "fixed" {
		slog.Error("unsupported kind for bulk codes", slog.String("kind", kind))
		os.Exit(1)
	}

	tmpl, err := parseTemplate(name, description, kind, value, minPurchase, maxUses)
	if err != nil {
		slog.Error("invalid rule template", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, tmpl); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func parseTemplate(name, description, kind, value, minPurchase string, maxUses int) (ruleTemplate, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return ruleTemplate{}, errors.Wrap(err, "parse value")
	}
	mp, err := decimal.NewFromString(minPurchase)
	if err != nil {
		return ruleTemplate{}, errors.Wrap(err, "parse min-purchase")
	}
	return ruleTemplate{
		name:        name,
		description: description,
		kind:        kind,
		value:       v,
		minPurchase: mp,
		maxUses:     maxUses,
	}, nil
}

func run(ctx context.Context, databaseURL string, files []string, tmpl ruleTemplate) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("collecting codes", slog.Int("files", len(files)))

	codes, err := collectCodes(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}

	slog.Info("unique codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCoupons(ctx, pool.SendBatch, codes, tmpl)
}

// collectCodes streams all files concurrently and returns the deduplicated
// code set. A bloom filter screens out the bulk of repeats cheaply; the map
// behind it resolves the filter's false positives exactly.
func collectCodes(ctx context.Context, files []string) ([]string, error) {
	var (
		mu     sync.Mutex
		filter = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		seen   = make(map[string]struct{})
		codes  []string
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzFile(ctx, f, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("progress", slog.Int("file", i+1), slog.Uint64("lines", count))
				}

				mu.Lock()
				defer mu.Unlock()
				if filter.TestAndAddString(code) {
					if _, dup := seen[code]; dup {
						return
					}
				}
				seen[code] = struct{}{}
				codes = append(codes, code)
			})
			if err != nil {
				return errors.Wrapf(err, "stream file %s", f)
			}
			slog.Info("file complete", slog.Int("file", i+1), slog.Uint64("lines", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return codes, nil
}

// streamGzFile reads a gzipped file line by line, calling fn for each
// trimmed non-empty line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var line uint64
	for scanner.Scan() {
		line++
		if line%progressEvery == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		code := strings.TrimSpace(scanner.Text())
		if code != "" {
			fn(code)
		}
	}
	return scanner.Err()
}

// batchSender is the subset of pgxpool.Pool used for inserts.
type batchSender func(ctx context.Context, b *pgx.Batch) pgx.BatchResults

// writeCoupons inserts one discount row per code in batches.
func writeCoupons(ctx context.Context, send batchSender, codes []string, tmpl ruleTemplate) error {
	var inserted int
	for start := 0; start < len(codes); start += insertBatch {
		end := min(start+insertBatch, len(codes))

		b := &pgx.Batch{}
		for _, code := range codes[start:end] {
			b.Queue(insertCouponSQL,
				uuid.New().String(),
				tmpl.name,
				tmpl.description,
				tmpl.kind,
				tmpl.value,
				tmpl.minPurchase,
				code,
				int32(tmpl.maxUses),
			)
		}

		res := send(ctx, b)
		if err := res.Close(); err != nil {
			return errors.Wrap(err, fmt.Sprintf("insert batch at %d", start))
		}

		inserted = end
		slog.Info("batch inserted", slog.Int("total", inserted))
	}
	return nil
}
