package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library_lending/apperr"
	"library_lending/lending"
	"library_lending/models"
)

// txRepo 是借还流程在单个事务里看到的视图
type txRepo struct{ db *gorm.DB }

var _ lending.Tx = (*txRepo)(nil)

// LockBook: SELECT ... FOR UPDATE，同一本书的借还在此串行
func (t *txRepo) LockBook(ctx context.Context, id uint) (*models.Book, error) {
	var b models.Book
	if err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		return nil, notFound(err, lending.MsgBookNotFound)
	}
	return &b, nil
}

// SetAvailable: UPDATE ... WHERE id=? AND available=?，0 行即被别人抢先
func (t *txRepo) SetAvailable(ctx context.Context, bookID uint, from, to bool) error {
	res := t.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND available = ?", bookID, from).
		Updates(map[string]any{"available": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return lending.ErrAvailabilityChanged
	}
	return nil
}

func (t *txRepo) CreateLoan(ctx context.Context, bookID uint, borrowerName string, at time.Time) (*models.Loan, error) {
	l := &models.Loan{
		BookID:       bookID,
		BorrowerName: borrowerName,
		LoanDate:     at,
		IsReturned:   false,
	}
	if err := t.db.WithContext(ctx).Create(l).Error; err != nil {
		switch {
		case isUniqueViolation(err, models.OneActiveLoanIndex):
			return nil, apperr.InvalidState(lending.MsgBookUnavailable)
		case isForeignKeyViolation(err):
			return nil, apperr.NotFound(lending.MsgBookNotFound)
		}
		return nil, err
	}
	return l, nil
}

func (t *txRepo) LockLoan(ctx context.Context, id uint) (*models.Loan, error) {
	var l models.Loan
	if err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
		return nil, notFound(err, lending.MsgLoanNotFound)
	}
	return &l, nil
}

func (t *txRepo) MarkReturned(ctx context.Context, id uint, at time.Time) (*models.Loan, error) {
	res := t.db.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ? AND is_returned = ?", id, false).
		Updates(map[string]any{"is_returned": true, "return_date": at, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}

	var l models.Loan
	if err := t.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFound(err, lending.MsgLoanNotFound)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.InvalidState(lending.MsgAlreadyReturned)
	}
	return &l, nil
}
