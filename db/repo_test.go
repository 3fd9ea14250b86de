package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library_lending/apperr"
	"library_lending/lending"
	"library_lending/models"
)

// openTestDB connects to LIBRARY_TEST_DATABASE_URL, migrates, and truncates.
// Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LIBRARY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LIBRARY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := Open(ctx, Options{DSN: dsn, MaxOpenConns: 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(conn) })

	require.NoError(t, Migrate(ctx, conn))
	require.NoError(t, conn.Exec(fmt.Sprintf("TRUNCATE %s, %s, %s RESTART IDENTITY CASCADE",
		models.LoanTable, models.BookTable, models.CategoryTable)).Error)
	return conn
}

func seed(t *testing.T, r *Repo) *models.Book {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	cat, err := r.CreateCategory(ctx, models.CategoryInput{Name: "Sci-Fi " + suffix})
	require.NoError(t, err)
	b, err := r.CreateBook(ctx, models.BookInput{
		Title: "Dune", Author: "Frank Herbert", ISBN: "isbn-" + suffix, PublicationYear: 1965, CategoryID: cat.ID,
	})
	require.NoError(t, err)
	return b
}

func Test_Postgres_CatalogConstraints(t *testing.T) {
	r := NewRepo(openTestDB(t))
	ctx := context.Background()
	b := seed(t, r)
	assert.True(t, b.Available)

	_, err := r.CreateBook(ctx, models.BookInput{
		Title: "Other", Author: "X", ISBN: b.ISBN, PublicationYear: 2000, CategoryID: b.CategoryID,
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = r.CreateBook(ctx, models.BookInput{
		Title: "Other", Author: "X", ISBN: "fresh", PublicationYear: 2000, CategoryID: 999999,
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = r.DeleteCategory(ctx, b.CategoryID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = r.GetBook(ctx, 999999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func Test_Postgres_BorrowReturn(t *testing.T) {
	r := NewRepo(openTestDB(t))
	svc := lending.NewService(r)
	ctx := context.Background()
	b := seed(t, r)

	loan, err := svc.Borrow(ctx, models.LoanInput{BookID: b.ID, BorrowerName: "Alice"})
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, models.LoanInput{BookID: b.ID, BorrowerName: "Bob"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	assert.Equal(t, lending.MsgBookOnLoan, apperr.Message(r.DeleteBook(ctx, b.ID), ""))

	returned, err := svc.Return(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, returned.IsReturned)
	require.NotNil(t, returned.ReturnDate)

	_, err = svc.Return(ctx, loan.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	got, err := r.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Available)

	assert.Equal(t, lending.MsgBookHasHistory, apperr.Message(r.DeleteBook(ctx, b.ID), ""))
}

func Test_Postgres_ConcurrentBorrowSingleWinner(t *testing.T) {
	r := NewRepo(openTestDB(t))
	svc := lending.NewService(r)
	ctx := context.Background()
	b := seed(t, r)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Borrow(ctx, models.LoanInput{BookID: b.ID, BorrowerName: fmt.Sprintf("reader-%d", i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	open := false
	loans, err := r.ListLoans(ctx, models.LoanFilter{Page: models.DefaultPage(), BookID: &b.ID, Returned: &open})
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func Test_Postgres_OneActiveLoanIndex(t *testing.T) {
	r := NewRepo(openTestDB(t))
	ctx := context.Background()
	b := seed(t, r)

	err := r.InTx(ctx, func(ctx context.Context, tx lending.Tx) error {
		if _, err := tx.CreateLoan(ctx, b.ID, "Alice", time.Now().UTC()); err != nil {
			return err
		}
		_, err := tx.CreateLoan(ctx, b.ID, "Bob", time.Now().UTC())
		return err
	})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	loans, err := r.ListLoans(ctx, models.LoanFilter{Page: models.DefaultPage()})
	require.NoError(t, err)
	assert.Empty(t, loans)
}
