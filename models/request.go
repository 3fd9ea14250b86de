// models/request.go
package models

import (
	"strings"

	"library_lending/apperr"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page 对应 ?skip=&limit=
type Page struct {
	Skip  int `form:"skip,default=0"`
	Limit int `form:"limit,default=100"`
}

// DefaultPage is what list endpoints use when no paging is given.
func DefaultPage() Page { return Page{Skip: 0, Limit: DefaultLimit} }

func (p Page) Validate() error {
	if p.Skip < 0 {
		return apperr.Validation("skip must be >= 0")
	}
	if p.Limit < 0 || p.Limit > MaxLimit {
		return apperr.Validation("limit must be between 0 and 1000")
	}
	return nil
}

type BookFilter struct {
	Page
	CategoryID *uint
	Available  *bool
}

type LoanFilter struct {
	Page
	BookID   *uint
	Returned *bool
}

type CategoryInput struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

func (in *CategoryInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		in.Description = &d
	}
	return nil
}

// BookInput is the full set of caller-editable book fields; Available is deliberately absent.
type BookInput struct {
	Title           string `json:"title" binding:"required"`
	Author          string `json:"author" binding:"required"`
	ISBN            string `json:"isbn" binding:"required"`
	PublicationYear int    `json:"publication_year" binding:"required"`
	CategoryID      uint   `json:"category_id" binding:"required"`
}

func (in *BookInput) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	switch {
	case in.Title == "":
		return apperr.Validation("title is required")
	case in.Author == "":
		return apperr.Validation("author is required")
	case in.ISBN == "":
		return apperr.Validation("isbn is required")
	case in.PublicationYear <= 0:
		return apperr.Validation("publication_year must be positive")
	case in.CategoryID == 0:
		return apperr.Validation("category_id is required")
	}
	return nil
}

// Apply copies the editable fields onto b.
func (in BookInput) Apply(b *Book) {
	b.Title = in.Title
	b.Author = in.Author
	b.ISBN = in.ISBN
	b.PublicationYear = in.PublicationYear
	b.CategoryID = in.CategoryID
}

type LoanInput struct {
	BookID       uint   `json:"book_id" binding:"required"`
	BorrowerName string `json:"borrower_name" binding:"required"`
}

func (in *LoanInput) Normalize() error {
	in.BorrowerName = strings.TrimSpace(in.BorrowerName)
	if in.BookID == 0 {
		return apperr.Validation("book_id is required")
	}
	if in.BorrowerName == "" {
		return apperr.Validation("borrower_name is required")
	}
	return nil
}
