package lending

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"library_lending/apperr"
	"library_lending/models"
)

const tracerName = "library_lending/lending"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Service owns the borrow/return flow and fronts the catalog and ledger for the API layer.
type Service struct {
	store  Store
	clock  Clock
	log    *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  realClock{},
		log:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) StoreKind() string { return s.store.Kind() }

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// ---------- catalog ----------

func (s *Service) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	c, err := s.store.CreateCategory(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create category %q: %w", in.Name, err)
	}
	s.log.InfoContext(ctx, "category.created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context, p models.Page) ([]models.Category, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, p)
}

func (s *Service) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "category.deleted", "category_id", id)
	return nil
}

func (s *Service) CreateBook(ctx context.Context, in models.BookInput) (*models.Book, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	b, err := s.store.CreateBook(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create book %q: %w", in.ISBN, err)
	}
	s.log.InfoContext(ctx, "book.created", "book_id", b.ID, "isbn", b.ISBN, "category_id", b.CategoryID)
	return b, nil
}

func (s *Service) ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	if err := f.Page.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListBooks(ctx, f)
}

func (s *Service) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	return s.store.GetBook(ctx, id)
}

func (s *Service) UpdateBook(ctx context.Context, id uint, in models.BookInput) (*models.Book, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	b, err := s.store.UpdateBook(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update book %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "book.updated", "book_id", b.ID)
	return b, nil
}

func (s *Service) DeleteBook(ctx context.Context, id uint) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "book.deleted", "book_id", id)
	return nil
}

// ---------- ledger ----------

func (s *Service) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	return s.store.GetLoan(ctx, id)
}

func (s *Service) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	if err := f.Page.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListLoans(ctx, f)
}

// ---------- borrow / return ----------

// Borrow lends an available book: AVAILABLE -> ON_LOAN.
// The availability flip and the new loan record commit together or not at all.
func (s *Service) Borrow(ctx context.Context, in models.LoanInput) (loan *models.Loan, err error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "lending.Borrow",
		trace.WithAttributes(attribute.Int64("book.id", int64(in.BookID))))
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		book, err := tx.LockBook(ctx, in.BookID)
		if err != nil {
			return err
		}
		if !book.Available {
			return apperr.InvalidState(MsgBookUnavailable)
		}

		// 先占位：只有 available=true 的那一次能翻转成功
		if err := tx.SetAvailable(ctx, book.ID, true, false); err != nil {
			if errors.Is(err, ErrAvailabilityChanged) {
				return apperr.InvalidState(MsgBookUnavailable)
			}
			return err
		}

		l, err := tx.CreateLoan(ctx, book.ID, in.BorrowerName, s.clock.Now())
		if err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidState) {
			s.log.InfoContext(ctx, "loan.rejected", "book_id", in.BookID, "reason", "unavailable")
		}
		return nil, fmt.Errorf("borrow book %d: %w", in.BookID, err)
	}

	span.SetAttributes(attribute.Int64("loan.id", int64(loan.ID)))
	s.log.InfoContext(ctx, "loan.created", "loan_id", loan.ID, "book_id", loan.BookID, "borrower", loan.BorrowerName)
	return loan, nil
}

// Return closes an open loan and makes its book available again: ON_LOAN -> AVAILABLE.
func (s *Service) Return(ctx context.Context, loanID uint) (loan *models.Loan, err error) {
	ctx, span := s.tracer.Start(ctx, "lending.Return",
		trace.WithAttributes(attribute.Int64("loan.id", int64(loanID))))
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		l, err := tx.LockLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if l.IsReturned {
			return apperr.InvalidState(MsgAlreadyReturned)
		}

		l, err = tx.MarkReturned(ctx, l.ID, s.clock.Now())
		if err != nil {
			return err
		}

		// 未归还的 Loan 存在时 available 必为 false；否则说明数据已不一致，整笔回滚
		if err := tx.SetAvailable(ctx, l.BookID, false, true); err != nil {
			if errors.Is(err, ErrAvailabilityChanged) {
				return fmt.Errorf("book %d was available while loan %d was open: %w", l.BookID, l.ID, err)
			}
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("return loan %d: %w", loanID, err)
	}

	span.SetAttributes(attribute.Int64("book.id", int64(loan.BookID)))
	s.log.InfoContext(ctx, "loan.returned", "loan_id", loan.ID, "book_id", loan.BookID)
	return loan, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err, err.Error()))
	}
	span.End()
}
