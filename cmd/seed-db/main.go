// Command seed-db loads the demo storefront catalog (categories, products,
// and an admin API key) into PostgreSQL. Re-running it is safe: rows are
// upserted by slug and SKU.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averlon/podstore/internal/domain/auth"
	"github.com/averlon/podstore/internal/domain/product"
	"github.com/averlon/podstore/internal/storage/postgres"
)

type categoryFixture struct {
	name        string
	slug        string
	description string
	parentSlug  string
	sortOrder   int
}

type productFixture struct {
	name             string
	slug             string
	sku              string
	shortDescription string
	description      string
	price            string
	originalPrice    string
	stock            int
	isFeatured       bool
	categorySlug     string
	images           []string
}

var categoryFixtures = []categoryFixture{
	{
		name:        "AirPods",
		slug:        "airpods",
		description: "Premium wireless earbuds with exceptional sound quality",
		sortOrder:   1,
	},
	{
		name:        "AirPods Pro",
		slug:        "airpods-pro",
		description: "Professional-grade wireless earbuds with active noise cancellation",
		parentSlug:  "airpods",
		sortOrder:   1,
	},
	{
		name:        "AirPods Max",
		slug:        "airpods-max",
		description: "Over-ear headphones with exceptional audio quality",
		parentSlug:  "airpods",
		sortOrder:   2,
	},
	{
		name:        "Accessories",
		slug:        "accessories",
		description: "Cases, chargers, and other accessories for your AirPods",
		sortOrder:   2,
	},
}

var productFixtures = []productFixture{
	{
		name:             "AirPods Pro (2nd generation)",
		slug:             "airpods-pro-2nd-gen",
		sku:              "APP2G-001",
		shortDescription: "Active Noise Cancellation, Transparency mode, and spatial audio",
		description:      "AirPods Pro (2nd generation) deliver up to 2x more Active Noise Cancellation, plus Transparency mode, and now Adaptive Transparency. Spatial Audio takes immersion to a remarkably personal level. And with multiple ear tip sizes, they offer a customizable fit for all-day comfort.",
		price:            "249.00",
		originalPrice:    "279.00",
		stock:            50,
		isFeatured:       true,
		categorySlug:     "airpods-pro",
		images:           []string{"airpods-pro-2nd-gen.jpg"},
	},
	{
		name:             "AirPods (3rd generation)",
		slug:             "airpods-3rd-gen",
		sku:              "AP3G-001",
		shortDescription: "Spatial audio and longer battery life in a new contoured design",
		description:      "AirPods (3rd generation) feature spatial audio that places sound all around you, plus longer battery life and a Lightning Charging Case. The new contoured design and shorter stem provide a more comfortable fit.",
		price:            "179.00",
		originalPrice:    "199.00",
		stock:            75,
		isFeatured:       true,
		categorySlug:     "airpods",
		images:           []string{"airpods-3rd-gen.jpg"},
	},
	{
		name:             "AirPods Max",
		slug:             "airpods-max",
		sku:              "APM-001",
		shortDescription: "Premium over-ear headphones with Active Noise Cancellation",
		description:      "AirPods Max deliver stunningly detailed, high-fidelity audio for an unparalleled listening experience. Each part of the custom-built driver works to produce sound with ultra-low distortion across the audible range.",
		price:            "549.00",
		stock:            25,
		isFeatured:       true,
		categorySlug:     "airpods-max",
		images:           []string{"airpods-max.jpg"},
	},
	{
		name:             "AirPods Pro (1st generation)",
		slug:             "airpods-pro-1st-gen",
		sku:              "APP1G-001",
		shortDescription: "Active Noise Cancellation in a compact design",
		description:      "AirPods Pro (1st generation) bring Active Noise Cancellation to an in-ear design, giving you immersive sound that tunes out the noise around you.",
		price:            "199.00",
		originalPrice:    "249.00",
		stock:            30,
		categorySlug:     "airpods-pro",
		images:           []string{"airpods-pro-1st-gen.jpg"},
	},
	{
		name:             "AirPods (2nd generation)",
		slug:             "airpods-2nd-gen",
		sku:              "AP2G-001",
		shortDescription: "Effortless wireless experience with the H1 chip",
		description:      "AirPods (2nd generation) deliver rich, high-quality AAC audio. And with up to 5 hours of listening time and the quick-charging case, they're perfect for all-day use.",
		price:            "129.00",
		originalPrice:    "159.00",
		stock:            100,
		categorySlug:     "airpods",
		images:           []string{"airpods-2nd-gen.jpg"},
	},
	{
		name:             "AirPods Pro Silicone Tips",
		slug:             "airpods-pro-silicone-tips",
		sku:              "APST-001",
		shortDescription: "Replacement silicone ear tips for AirPods Pro",
		description:      "Get the perfect fit with these replacement silicone ear tips for AirPods Pro. Available in small, medium, and large sizes.",
		price:            "19.00",
		stock:            200,
		categorySlug:     "accessories",
		images:           []string{"airpods-pro-tips.jpg"},
	},
	{
		name:             "MagSafe Charging Case for AirPods Pro",
		slug:             "magsafe-charging-case-airpods-pro",
		sku:              "MSCC-001",
		shortDescription: "Wireless charging case with MagSafe compatibility",
		description:      "The MagSafe Charging Case for AirPods Pro delivers more than 24 hours of battery life and features wireless charging with MagSafe and Qi compatibility.",
		price:            "99.00",
		stock:            50,
		categorySlug:     "accessories",
		images:           []string{"magsafe-case.jpg"},
	},
	{
		name:             "AirPods Leather Case",
		slug:             "airpods-leather-case",
		sku:              "ALC-001",
		shortDescription: "Premium leather protection for your AirPods",
		description:      "Crafted from specially tanned and finished European leather, this case provides elegant protection for your AirPods charging case.",
		price:            "35.00",
		stock:            75,
		categorySlug:     "accessories",
		images:           []string{"leather-case.jpg"},
	},
}

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or POD_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or POD_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("POD_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("POD_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewSeedStore(pool)

	categoryIDs, err := seedCategories(ctx, store)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, store, categoryIDs); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if apiKey != "" {
		if err := seedAPIKey(ctx, store, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

// seedCategories upserts the category tree in fixture order, so parents exist
// before children reference them. Returns the canonical ID per slug.
func seedCategories(ctx context.Context, store *postgres.SeedStore) (map[string]string, error) {
	slog.Info("upserting categories", slog.Int("count", len(categoryFixtures)))

	ids := make(map[string]string, len(categoryFixtures))
	for _, f := range categoryFixtures {
		c := &product.Category{
			ID:          uuid.New().String(),
			Name:        f.name,
			Slug:        f.slug,
			Description: f.description,
			ParentID:    ids[f.parentSlug],
			SortOrder:   f.sortOrder,
			IsActive:    true,
		}

		id, err := store.UpsertCategory(ctx, c)
		if err != nil {
			return nil, err
		}
		ids[f.slug] = id

		slog.Info("upserted category", slog.String("slug", f.slug))
	}
	return ids, nil
}

func seedProducts(ctx context.Context, store *postgres.SeedStore, categoryIDs map[string]string) error {
	slog.Info("upserting products", slog.Int("count", len(productFixtures)))

	for _, f := range productFixtures {
		categoryID, ok := categoryIDs[f.categorySlug]
		if !ok {
			return errors.Errorf("unknown category slug %q for product %s", f.categorySlug, f.sku)
		}

		p := &product.Product{
			ID:               uuid.New().String(),
			CategoryID:       categoryID,
			Name:             f.name,
			Slug:             f.slug,
			SKU:              f.sku,
			ShortDescription: f.shortDescription,
			Description:      f.description,
			Price:            decimal.RequireFromString(f.price),
			Stock:            f.stock,
			IsActive:         true,
			IsFeatured:       f.isFeatured,
			Images:           f.images,
			SortOrder:        1,
		}
		if f.originalPrice != "" {
			p.OriginalPrice = decimal.RequireFromString(f.originalPrice)
		}

		if _, err := store.UpsertProduct(ctx, p); err != nil {
			return err
		}

		slog.Info("upserted product", slog.String("sku", f.sku), slog.String("name", f.name))
	}
	return nil
}

func seedAPIKey(ctx context.Context, store *postgres.SeedStore, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	if err := store.UpsertAPIKey(ctx, &auth.APIKey{
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
	}); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("name", "Default admin key"))
	return nil
}
