package lending

import (
	"context"
	"errors"
	"time"

	"library_lending/models"
)

// ErrAvailabilityChanged is returned by Tx.SetAvailable when the book's flag no longer holds the expected value.
var ErrAvailabilityChanged = errors.New("book availability changed concurrently")

// Catalog is the CRUD surface over categories and books. Nothing on it changes Book.Available.
type Catalog interface {
	CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error)
	ListCategories(ctx context.Context, p models.Page) ([]models.Category, error)
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uint) error

	CreateBook(ctx context.Context, in models.BookInput) (*models.Book, error)
	ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, id uint) (*models.Book, error)
	UpdateBook(ctx context.Context, id uint, in models.BookInput) (*models.Book, error)
	DeleteBook(ctx context.Context, id uint) error
}

// Ledger is the read side of the loan records.
type Ledger interface {
	GetLoan(ctx context.Context, id uint) (*models.Loan, error)
	ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error)
}

// Tx is the transaction-scoped view borrow and return run against.
// Writes made through it become visible together when the enclosing InTx returns nil.
type Tx interface {
	// LockBook reads the book and holds it against concurrent borrow/return until the Tx ends.
	LockBook(ctx context.Context, id uint) (*models.Book, error)
	// SetAvailable flips Book.Available from -> to, or fails with ErrAvailabilityChanged.
	SetAvailable(ctx context.Context, bookID uint, from, to bool) error

	CreateLoan(ctx context.Context, bookID uint, borrowerName string, at time.Time) (*models.Loan, error)
	LockLoan(ctx context.Context, id uint) (*models.Loan, error)
	// MarkReturned closes an open loan; an already returned loan yields an InvalidState error.
	MarkReturned(ctx context.Context, id uint, at time.Time) (*models.Loan, error)
}

// Store is implemented by the postgres repo and by the in-memory prototype.
type Store interface {
	Catalog
	Ledger

	// InTx runs fn atomically: all Tx writes commit when fn returns nil, none otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Kind() string
}
