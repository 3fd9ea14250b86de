// models/catalog.go
package models

import "time"

const (
	CategoryTable = "categories"
	BookTable     = "books"

	// 唯一约束名，db 层据此区分冲突来源
	CategoryNameIndex = "idx_categories_name"
	BookISBNIndex     = "idx_books_isbn"
)

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex:idx_categories_name" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Book.Available 是冗余列：有未归还的 Loan 时为 false，只由借还流程改写
type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null;index" json:"title"`
	Author          string    `gorm:"size:255;not null;index" json:"author"`
	ISBN            string    `gorm:"column:isbn;size:32;not null;uniqueIndex:idx_books_isbn" json:"isbn"`
	PublicationYear int       `gorm:"not null" json:"publication_year"`
	CategoryID      uint      `gorm:"not null;index" json:"category_id"`
	Available       bool      `gorm:"not null;default:true" json:"available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Category *Category `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (Category) TableName() string { return CategoryTable }
func (Book) TableName() string     { return BookTable }
