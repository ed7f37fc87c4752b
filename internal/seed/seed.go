// Package seed writes a deterministic demo star schema to the gold layer so a
// fresh deployment has something to query.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/starquery/starquery/internal/storage"
)

type Config struct {
	GoldPrefix   string
	Transactions int
	Users        int
	Seed         int64
}

func DefaultConfig() Config {
	return Config{
		GoldPrefix:   "gold",
		Transactions: 2000,
		Users:        200,
		Seed:         1,
	}
}

type factRow struct {
	TransactionID     string  `parquet:"transaction_id"`
	CategoryID        int64   `parquet:"category_id"`
	DateID            int64   `parquet:"date_id"`
	UserID            string  `parquet:"user_id"`
	PaymentID         int64   `parquet:"payment_id"`
	TransactionAmount float64 `parquet:"transaction_amount"`
}

type userRow struct {
	UserID      string `parquet:"user_id"`
	Name        string `parquet:"name"`
	Address     string `parquet:"address"`
	PhoneNumber string `parquet:"phone_number"`
	City        string `parquet:"city"`
	Country     string `parquet:"country"`
	Email       string `parquet:"email"`
}

type categoryRow struct {
	CategoryID   int64  `parquet:"category_id"`
	CategoryType string `parquet:"category_type"`
	Merchant     string `parquet:"merchant"`
}

type paymentRow struct {
	PaymentID       int64  `parquet:"payment_id"`
	PaymentType     string `parquet:"payment_type"`
	PaymentCurrency string `parquet:"payment_currency"`
	PaymentMethod   string `parquet:"payment_method"`
}

type dateRow struct {
	DateID  int64  `parquet:"date_id"`
	Year    int32  `parquet:"year"`
	Quarter int32  `parquet:"quarter"`
	Month   int32  `parquet:"month"`
	Weekday string `parquet:"weekday"`
	Day     int32  `parquet:"day"`
	Hour    int32  `parquet:"hour"`
	Minute  int32  `parquet:"minute"`
}

type Seeder struct {
	cfg   Config
	store storage.ObjectStore
	log   *slog.Logger
	now   func() time.Time
}

func NewSeeder(cfg Config, store storage.ObjectStore, logger *slog.Logger) (*Seeder, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Transactions <= 0 {
		return nil, fmt.Errorf("transactions must be > 0")
	}
	if cfg.Users <= 0 {
		return nil, fmt.Errorf("users must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		cfg:   cfg,
		store: store,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run generates every table and uploads it under the gold prefix. The same
// seed always produces the same bytes, so reruns are idempotent overwrites.
func (s *Seeder) Run(ctx context.Context) error {
	rnd := rand.New(rand.NewSource(s.cfg.Seed))

	users := s.buildUsers(rnd)
	categories := buildCategories()
	payments := buildPayments()
	dates := s.buildDates()
	facts := s.buildFacts(rnd, users, categories, payments, dates)

	if err := uploadTable(ctx, s.store, s.cfg.GoldPrefix, "dim_user", users); err != nil {
		return err
	}
	if err := uploadTable(ctx, s.store, s.cfg.GoldPrefix, "dim_category", categories); err != nil {
		return err
	}
	if err := uploadTable(ctx, s.store, s.cfg.GoldPrefix, "dim_payment", payments); err != nil {
		return err
	}
	if err := uploadTable(ctx, s.store, s.cfg.GoldPrefix, "dim_date", dates); err != nil {
		return err
	}
	if err := uploadTable(ctx, s.store, s.cfg.GoldPrefix, "transaction_fact", facts); err != nil {
		return err
	}

	s.log.Info("seeded gold layer",
		"transactions", len(facts),
		"users", len(users),
		"dates", len(dates),
	)
	return nil
}

func (s *Seeder) buildUsers(rnd *rand.Rand) []userRow {
	cities := []string{"Berlin", "Vienna", "Lisbon", "Austin", "Osaka", "Nairobi"}
	countries := []string{"Germany", "Austria", "Portugal", "United States", "Japan", "Kenya"}

	rows := make([]userRow, 0, s.cfg.Users)
	for i := 1; i <= s.cfg.Users; i++ {
		pick := rnd.Intn(len(cities))
		rows = append(rows, userRow{
			UserID:      fmt.Sprintf("user-%04d", i),
			Name:        fmt.Sprintf("User %04d", i),
			Address:     fmt.Sprintf("%d Market Street", rnd.Intn(900)+100),
			PhoneNumber: fmt.Sprintf("+1-555-%07d", rnd.Intn(10000000)),
			City:        cities[pick],
			Country:     countries[pick],
			Email:       fmt.Sprintf("user%04d@example.com", i),
		})
	}
	return rows
}

func buildCategories() []categoryRow {
	return []categoryRow{
		{CategoryID: 1, CategoryType: "Food", Merchant: "Fresh Grocer"},
		{CategoryID: 2, CategoryType: "Food", Merchant: "Corner Deli"},
		{CategoryID: 3, CategoryType: "Shopping", Merchant: "Northwind Outfitters"},
		{CategoryID: 4, CategoryType: "Shopping", Merchant: "Pixel Electronics"},
		{CategoryID: 5, CategoryType: "Transport", Merchant: "Metro Transit"},
		{CategoryID: 6, CategoryType: "Transport", Merchant: "City Cabs"},
		{CategoryID: 7, CategoryType: "Entertainment", Merchant: "Grand Cinema"},
		{CategoryID: 8, CategoryType: "Utilities", Merchant: "Brightgrid Energy"},
	}
}

func buildPayments() []paymentRow {
	return []paymentRow{
		{PaymentID: 1, PaymentType: "credit", PaymentCurrency: "USD", PaymentMethod: "card"},
		{PaymentID: 2, PaymentType: "debit", PaymentCurrency: "USD", PaymentMethod: "card"},
		{PaymentID: 3, PaymentType: "debit", PaymentCurrency: "EUR", PaymentMethod: "transfer"},
		{PaymentID: 4, PaymentType: "credit", PaymentCurrency: "EUR", PaymentMethod: "wallet"},
		{PaymentID: 5, PaymentType: "cash", PaymentCurrency: "USD", PaymentMethod: "cash"},
	}
}

// buildDates emits one row per hour for the 90 days leading up to now.
func (s *Seeder) buildDates() []dateRow {
	end := s.now().Truncate(time.Hour)
	start := end.AddDate(0, 0, -90)

	rows := make([]dateRow, 0, 90*24)
	for ts := start; !ts.After(end); ts = ts.Add(time.Hour) {
		rows = append(rows, dateRow{
			DateID:  dateID(ts),
			Year:    int32(ts.Year()),
			Quarter: int32((int(ts.Month())-1)/3 + 1),
			Month:   int32(ts.Month()),
			Weekday: ts.Weekday().String(),
			Day:     int32(ts.Day()),
			Hour:    int32(ts.Hour()),
			Minute:  int32(ts.Minute()),
		})
	}
	return rows
}

func (s *Seeder) buildFacts(rnd *rand.Rand, users []userRow, categories []categoryRow, payments []paymentRow, dates []dateRow) []factRow {
	rows := make([]factRow, 0, s.cfg.Transactions)
	for i := 1; i <= s.cfg.Transactions; i++ {
		category := categories[rnd.Intn(len(categories))]
		rows = append(rows, factRow{
			TransactionID:     fmt.Sprintf("txn-%08d", i),
			CategoryID:        category.CategoryID,
			DateID:            dates[rnd.Intn(len(dates))].DateID,
			UserID:            users[rnd.Intn(len(users))].UserID,
			PaymentID:         payments[rnd.Intn(len(payments))].PaymentID,
			TransactionAmount: amountFor(rnd, category.CategoryType),
		})
	}
	return rows
}

func amountFor(rnd *rand.Rand, categoryType string) float64 {
	var base, spread float64
	switch categoryType {
	case "Food":
		base, spread = 8, 70
	case "Shopping":
		base, spread = 15, 400
	case "Transport":
		base, spread = 2, 40
	case "Entertainment":
		base, spread = 10, 90
	default:
		base, spread = 30, 220
	}
	return math.Round((base+rnd.Float64()*spread)*100) / 100
}

func dateID(ts time.Time) int64 {
	return int64(ts.Year())*1e8 + int64(ts.Month())*1e6 + int64(ts.Day())*1e4 + int64(ts.Hour())*1e2 + int64(ts.Minute())
}

func uploadTable[T any](ctx context.Context, store storage.ObjectStore, prefix, tableName string, rows []T) error {
	key, err := storage.BuildGoldObjectPath(prefix, tableName)
	if err != nil {
		return err
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("encode %s: %w", tableName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close %s writer: %w", tableName, err)
	}

	if _, err := store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("upload %s: %w", tableName, err)
	}
	return nil
}
