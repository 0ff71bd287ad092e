package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type product struct {
	SKU   string
	Name  string
	Stock int
	Price string
}

var products = []product{
	{"TEA-ASSAM-250", "Assam Tea 250g", 40, "249.00"},
	{"TEA-DARJ-100", "Darjeeling First Flush 100g", 25, "399.00"},
	{"MUG-STEEL", "Steel Tumbler", 60, "180.00"},
	{"SPICE-MASALA", "Garam Masala 100g", 80, "95.50"},
}

func main() {
	qty := flag.Int("qty", 1, "quantity of each product in the demo order")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	siteURL := strings.TrimRight(os.Getenv("SITE_URL"), "/")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer conn.Close(context.Background())

	orderID, orderKey, err := seed(ctx, conn, *qty)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Int64("order_id", orderID).Str("order_key", orderKey).Msg("seeded demo order")
	if siteURL != "" {
		fmt.Printf("pay:      POST %s/checkout/orders/%d/pay {\"paymentMethod\":\"asppay\"}\n", siteURL, orderID)
		fmt.Printf("received: %s/checkout/order-received/%d/?key=%s\n", siteURL, orderID, orderKey)
	}
}

func seed(ctx context.Context, conn *pgx.Conn, qty int) (int64, string, error) {
	if qty <= 0 {
		qty = 1
	}
	var (
		orderID  int64
		orderKey = "wc_order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	)
	err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO orders (order_key, status, currency, total)
			VALUES ($1, 'pending', 'INR', 0)`, orderKey); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := tx.QueryRow(ctx, `SELECT id FROM orders WHERE order_key = $1`, orderKey).Scan(&orderID); err != nil {
			return fmt.Errorf("load order id: %w", err)
		}
		for _, p := range products {
			var productID int64
			err := tx.QueryRow(ctx, `INSERT INTO products (sku, name, stock)
				VALUES ($1, $2, $3)
				ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, p.SKU, p.Name, p.Stock).Scan(&productID)
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", p.SKU, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, name, qty, line_total)
				VALUES ($1, $2, $3, $4::int, $5::numeric * $4::int)`, orderID, productID, p.Name, qty, p.Price); err != nil {
				return fmt.Errorf("insert item %s: %w", p.SKU, err)
			}
		}
		_, err := tx.Exec(ctx, `UPDATE orders SET total = (SELECT COALESCE(SUM(line_total), 0) FROM order_items WHERE order_id = $1)
			WHERE id = $1`, orderID)
		return err
	})
	if err != nil {
		return 0, "", err
	}
	return orderID, orderKey, nil
}
