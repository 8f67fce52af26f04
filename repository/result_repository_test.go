package repository

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"smartcart/database"
	"smartcart/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	ctx := context.Background()
	dbContainer, err := postgres.Run(
		ctx,
		"postgres:15",
		postgres.WithDatabase("smartcart"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = database.Open(ctx, connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}
	if err := database.CreateTables(ctx, testDB); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	flag.Parse()

	var teardown func(context.Context, ...testcontainers.TerminateOption) error
	if !testing.Short() {
		var err error
		teardown, err = setupTestDB()
		if err != nil {
			log.Printf("postgres container unavailable, skipping database tests: %v", err)
			testDB = nil
		}
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Printf("could not teardown postgres container: %v", err)
		}
	}
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
}

func priced(name, price string) models.ProductRecord {
	return models.ProductRecord{Name: name, Price: models.NewPrice(decimal.RequireFromString(price)), Available: true}
}

func TestResultRepositorySaveAndLoad(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := NewResultRepository(testDB)

	milk := priced("2% Milk", "6.97").WithUnitPrice(models.UnitPrice{
		AmountPerUnit: decimal.RequireFromString("0.0017425"),
		Unit:          "ml",
		Normalized:    true,
	}, "$0.17/100ml")
	milk.QuantityText = "4 L"
	milk.SourceRetailer = "walmart"
	unpriced := models.ProductRecord{Name: "Milk 1L", SourceRetailer: "walmart"}

	run := models.NewComparisonRun([]string{"milk", "lemons"})
	run.Record("milk", models.QueryResultSet{
		"walmart":    {milk, unpriced},
		"superstore": {},
	}, &models.ComparisonOutcome{Retailer: "walmart", Record: milk, Basis: models.BasisUnitPrice}, nil)
	run.Record("lemons", models.QueryResultSet{}, nil, []models.SearchFailure{
		{Retailer: "sobeys", Query: "lemons", Kind: models.FailureBlocked, Message: "still blocked"},
	})
	run.Finish()

	require.NoError(t, repo.Save(ctx, run))

	results, err := repo.GetResults(ctx, run.ID, "milk")
	require.NoError(t, err)
	require.Len(t, results["walmart"], 2)
	got := results["walmart"][0]
	assert.Equal(t, "2% Milk", got.Name)
	assert.True(t, got.Price.Decimal.Equal(decimal.RequireFromString("6.97")))
	assert.Equal(t, "4 L", got.QuantityText)
	require.NotNil(t, got.UnitPrice)
	assert.True(t, got.UnitPrice.AmountPerUnit.Equal(decimal.RequireFromString("0.0017425")))
	assert.False(t, results["walmart"][1].Price.Valid)
	assert.Nil(t, results["walmart"][1].UnitPrice)

	history, err := repo.GetBestDealHistory(ctx, "milk", 5)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, run.ID, history[0].RunID)
	assert.Equal(t, "walmart", history[0].Retailer)
	assert.Equal(t, models.BasisUnitPrice, history[0].Basis)

	none, err := repo.GetBestDealHistory(ctx, "lemons", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	var failures int
	require.NoError(t, testDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_failures WHERE run_id = $1`, run.ID).Scan(&failures))
	assert.Equal(t, 1, failures)
}

func TestResultRepositorySaveIsAtomic(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := NewResultRepository(testDB)

	run := models.NewComparisonRun([]string{"eggs"})
	run.Record("eggs", models.QueryResultSet{"sobeys": {priced("Eggs", "4.29")}}, nil, nil)
	run.Finish()
	require.NoError(t, repo.Save(ctx, run))

	// Saving the same run id again violates the primary key and must leave no partial rows.
	err := repo.Save(ctx, run)
	require.Error(t, err)

	var count int
	require.NoError(t, testDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_results WHERE run_id = $1`, run.ID).Scan(&count))
	assert.Equal(t, 1, count)
}
