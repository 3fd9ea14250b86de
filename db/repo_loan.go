package db

import (
	"context"

	"library_lending/lending"
	"library_lending/models"
)

func (r *Repo) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFound(err, lending.MsgLoanNotFound)
	}
	return &l, nil
}

func (r *Repo) ListLoans(ctx context.Context, f models.LoanFilter) ([]models.Loan, error) {
	out := []models.Loan{}
	if f.Limit == 0 {
		return out, nil
	}
	q := r.DB.WithContext(ctx).Model(&models.Loan{})
	if f.BookID != nil {
		q = q.Where("book_id = ?", *f.BookID)
	}
	if f.Returned != nil {
		q = q.Where("is_returned = ?", *f.Returned)
	}
	err := q.Order("id ASC").Offset(f.Skip).Limit(f.Limit).Find(&out).Error
	return out, err
}
