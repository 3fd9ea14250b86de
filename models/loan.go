// models/loan.go
package models

import "time"

const (
	LoanTable = "loans"

	// 同一本书最多一条未归还的 Loan
	OneActiveLoanIndex = "loans_one_active_per_book"
)

type Loan struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BookID       uint       `gorm:"not null;index" json:"book_id"`
	BorrowerName string     `gorm:"size:255;not null" json:"borrower_name"`
	LoanDate     time.Time  `gorm:"not null" json:"loan_date"`
	ReturnDate   *time.Time `json:"return_date"`
	IsReturned   bool       `gorm:"not null;default:false" json:"is_returned"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Book *Book `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (Loan) TableName() string { return LoanTable }
