// Package memstore is the in-memory prototype of the catalog and loan ledger.
// Nothing is persisted; state lives for the lifetime of the process.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"library_lending/apperr"
	"library_lending/lending"
	"library_lending/models"
)

type Store struct {
	mu    sync.RWMutex
	nowFn func() time.Time

	categories map[uint]models.Category
	books      map[uint]models.Book
	loans      map[uint]models.Loan

	// insertion order for listings
	categoryOrder []uint
	bookOrder     []uint
	loanOrder     []uint

	categoryByName map[string]uint
	bookByISBN     map[string]uint
	activeLoan     map[uint]uint // book id -> open loan id

	nextCategoryID uint
	nextBookID     uint
	nextLoanID     uint
}

var _ lending.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		nowFn:          func() time.Time { return time.Now().UTC() },
		categories:     map[uint]models.Category{},
		books:          map[uint]models.Book{},
		loans:          map[uint]models.Loan{},
		categoryByName: map[string]uint{},
		bookByISBN:     map[string]uint{},
		activeLoan:     map[uint]uint{},
	}
}

func (s *Store) Kind() string { return "memory" }

func (s *Store) Ping(context.Context) error { return nil }

// ---------- categories ----------

func (s *Store) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categoryByName[in.Name]; exists {
		return nil, apperr.Conflict(lending.MsgCategoryExists)
	}
	now := s.nowFn()
	s.nextCategoryID++
	c := models.Category{
		ID:          s.nextCategoryID,
		Name:        in.Name,
		Description: cloneString(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.categories[c.ID] = c
	s.categoryOrder = append(s.categoryOrder, c.ID)
	s.categoryByName[c.Name] = c.ID
	return cloneCategory(c), nil
}

func (s *Store) ListCategories(ctx context.Context, p models.Page) ([]models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Category{}
	for _, id := range window(s.categoryOrder, p) {
		out = append(out, *cloneCategory(s.categories[id]))
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.NotFound(lending.MsgCategoryNotFound)
	}
	return cloneCategory(c), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return apperr.NotFound(lending.MsgCategoryNotFound)
	}
	for _, b := range s.books {
		if b.CategoryID == id {
			return apperr.InvalidState(lending.MsgCategoryInUse)
		}
	}
	delete(s.categories, id)
	delete(s.categoryByName, c.Name)
	s.categoryOrder = removeID(s.categoryOrder, id)
	return nil
}

// ---------- books ----------

func (s *Store) CreateBook(ctx context.Context, in models.BookInput) (*models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[in.CategoryID]; !ok {
		return nil, apperr.NotFound(lending.MsgCategoryNotFound)
	}
	if _, exists := s.bookByISBN[in.ISBN]; exists {
		return nil, apperr.Conflict(lending.MsgISBNExists)
	}
	now := s.nowFn()
	s.nextBookID++
	b := models.Book{ID: s.nextBookID, Available: true, CreatedAt: now, UpdatedAt: now}
	in.Apply(&b)

	s.books[b.ID] = b
	s.bookOrder = append(s.bookOrder, b.ID)
	s.bookByISBN[b.ISBN] = b.ID
	return cloneBook(b), nil
}

func (s *Store) ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]uint, 0, len(s.bookOrder))
	for _, id := range s.bookOrder {
		b := s.books[id]
		if f.CategoryID != nil && b.CategoryID != *f.CategoryID {
			continue
		}
		if f.Available != nil && b.Available != *f.Available {
			continue
		}
		matched = append(matched, id)
	}
	out := []models.Book{}
	for _, id := range window(matched, f.Page) {
		out = append(out, *cloneBook(s.books[id]))
	}
	return out, nil
}

func (s *Store) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return nil, apperr.NotFound(lending.MsgBookNotFound)
	}
	return cloneBook(b), nil
}

func (s *Store) UpdateBook(ctx context.Context, id uint, in models.BookInput) (*models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return nil, apperr.NotFound(lending.MsgBookNotFound)
	}
	if _, ok := s.categories[in.CategoryID]; !ok {
		return nil, apperr.NotFound(lending.MsgCategoryNotFound)
	}
	if owner, exists := s.bookByISBN[in.ISBN]; exists && owner != id {
		return nil, apperr.Conflict(lending.MsgISBNExists)
	}

	delete(s.bookByISBN, b.ISBN)
	in.Apply(&b)
	b.UpdatedAt = s.nowFn()
	s.books[id] = b
	s.bookByISBN[b.ISBN] = id
	return cloneBook(b), nil
}

func (s *Store) DeleteBook(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return apperr.NotFound(lending.MsgBookNotFound)
	}
	if _, open := s.activeLoan[id]; open {
		return apperr.InvalidState(lending.MsgBookOnLoan)
	}
	for _, l := range s.loans {
		if l.BookID == id {
			return apperr.InvalidState(lending.MsgBookHasHistory)
		}
	}
	delete(s.books, id)
	delete(s.bookByISBN, b.ISBN)
	s.bookOrder = removeID(s.bookOrder, id)
	return nil
}

// ---------- loans ----------

func (s *Store) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.loans[id]
	if !ok {
		return nil, apperr.NotFound(lending.MsgLoanNotFound)
	}
	return cloneLoan(l), nil
}

func (s *Store) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]uint, 0, len(s.loanOrder))
	for _, id := range s.loanOrder {
		l := s.loans[id]
		if f.BookID != nil && l.BookID != *f.BookID {
			continue
		}
		if f.Returned != nil && l.IsReturned != *f.Returned {
			continue
		}
		matched = append(matched, id)
	}
	out := []models.Loan{}
	for _, id := range window(matched, f.Page) {
		out = append(out, *cloneLoan(s.loans[id]))
	}
	return out, nil
}

// ---------- transactions ----------

// InTx holds the store-wide write lock for the whole of fn, so borrow/return on the same
// book are serialized. Writes are staged on the tx and published only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx lending.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:      s,
		books:      map[uint]models.Book{},
		loans:      map[uint]models.Loan{},
		nextLoanID: s.nextLoanID,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx.commit()
	return nil
}

type memTx struct {
	store *Store

	books      map[uint]models.Book
	loans      map[uint]models.Loan
	newLoans   []uint
	nextLoanID uint
}

var _ lending.Tx = (*memTx)(nil)

func (tx *memTx) book(id uint) (models.Book, bool) {
	if b, ok := tx.books[id]; ok {
		return b, true
	}
	b, ok := tx.store.books[id]
	return b, ok
}

func (tx *memTx) loan(id uint) (models.Loan, bool) {
	if l, ok := tx.loans[id]; ok {
		return l, true
	}
	l, ok := tx.store.loans[id]
	return l, ok
}

func (tx *memTx) LockBook(_ context.Context, id uint) (*models.Book, error) {
	b, ok := tx.book(id)
	if !ok {
		return nil, apperr.NotFound(lending.MsgBookNotFound)
	}
	return cloneBook(b), nil
}

func (tx *memTx) SetAvailable(_ context.Context, bookID uint, from, to bool) error {
	b, ok := tx.book(bookID)
	if !ok || b.Available != from {
		return lending.ErrAvailabilityChanged
	}
	b.Available = to
	b.UpdatedAt = tx.store.nowFn()
	tx.books[bookID] = b
	return nil
}

func (tx *memTx) CreateLoan(_ context.Context, bookID uint, borrowerName string, at time.Time) (*models.Loan, error) {
	if _, ok := tx.book(bookID); !ok {
		return nil, apperr.NotFound(lending.MsgBookNotFound)
	}
	if tx.openLoanFor(bookID) {
		return nil, apperr.InvalidState(lending.MsgBookUnavailable)
	}
	tx.nextLoanID++
	now := tx.store.nowFn()
	l := models.Loan{
		ID:           tx.nextLoanID,
		BookID:       bookID,
		BorrowerName: borrowerName,
		LoanDate:     at,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx.loans[l.ID] = l
	tx.newLoans = append(tx.newLoans, l.ID)
	return cloneLoan(l), nil
}

func (tx *memTx) openLoanFor(bookID uint) bool {
	for _, l := range tx.loans {
		if l.BookID == bookID && !l.IsReturned {
			return true
		}
	}
	id, open := tx.store.activeLoan[bookID]
	if !open {
		return false
	}
	if staged, ok := tx.loans[id]; ok {
		return !staged.IsReturned
	}
	return true
}

func (tx *memTx) LockLoan(_ context.Context, id uint) (*models.Loan, error) {
	l, ok := tx.loan(id)
	if !ok {
		return nil, apperr.NotFound(lending.MsgLoanNotFound)
	}
	return cloneLoan(l), nil
}

func (tx *memTx) MarkReturned(_ context.Context, id uint, at time.Time) (*models.Loan, error) {
	l, ok := tx.loan(id)
	if !ok {
		return nil, apperr.NotFound(lending.MsgLoanNotFound)
	}
	if l.IsReturned {
		return nil, apperr.InvalidState(lending.MsgAlreadyReturned)
	}
	returned := at
	l.IsReturned = true
	l.ReturnDate = &returned
	l.UpdatedAt = tx.store.nowFn()
	tx.loans[id] = l
	return cloneLoan(l), nil
}

func (tx *memTx) commit() {
	s := tx.store
	for id, b := range tx.books {
		s.books[id] = b
	}
	for id, l := range tx.loans {
		s.loans[id] = l
		if l.IsReturned {
			if s.activeLoan[l.BookID] == id {
				delete(s.activeLoan, l.BookID)
			}
		} else {
			s.activeLoan[l.BookID] = id
		}
	}
	s.loanOrder = append(s.loanOrder, tx.newLoans...)
	s.nextLoanID = tx.nextLoanID
}

// ---------- helpers ----------

func window(ids []uint, p models.Page) []uint {
	if p.Skip >= len(ids) {
		return nil
	}
	end := len(ids)
	if p.Skip+p.Limit < end {
		end = p.Skip + p.Limit
	}
	return ids[p.Skip:end]
}

func removeID(ids []uint, id uint) []uint {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneCategory(c models.Category) *models.Category {
	c.Description = cloneString(c.Description)
	return &c
}

func cloneBook(b models.Book) *models.Book {
	b.Category = nil
	return &b
}

func cloneLoan(l models.Loan) *models.Loan {
	if l.ReturnDate != nil {
		t := *l.ReturnDate
		l.ReturnDate = &t
	}
	l.Book = nil
	return &l
}
