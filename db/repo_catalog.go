package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library_lending/apperr"
	"library_lending/lending"
	"library_lending/models"
)

// Categories

func (r *Repo) CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	c := models.Category{Name: in.Name, Description: in.Description}
	if err := r.DB.WithContext(ctx).Create(&c).Error; err != nil {
		if isUniqueViolation(err, models.CategoryNameIndex) {
			return nil, apperr.Conflict(lending.MsgCategoryExists)
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListCategories(ctx context.Context, p models.Page) ([]models.Category, error) {
	out := []models.Category{}
	if p.Limit == 0 {
		return out, nil
	}
	err := r.DB.WithContext(ctx).
		Order("id ASC").
		Offset(p.Skip).
		Limit(p.Limit).
		Find(&out).Error
	return out, err
}

func (r *Repo) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, lending.MsgCategoryNotFound)
	}
	return &c, nil
}

func (r *Repo) DeleteCategory(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Category
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error; err != nil {
			return notFound(err, lending.MsgCategoryNotFound)
		}
		var n int64
		if err := tx.Model(&models.Book{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.InvalidState(lending.MsgCategoryInUse)
		}
		if err := tx.Delete(&c).Error; err != nil {
			if isForeignKeyViolation(err) {
				return apperr.InvalidState(lending.MsgCategoryInUse)
			}
			return err
		}
		return nil
	})
}

// Books

// lockCategory 加共享锁：写书期间分类不能被删
func lockCategory(tx *gorm.DB, id uint) error {
	var c models.Category
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&c, id).Error
	return notFound(err, lending.MsgCategoryNotFound)
}

func bookWriteErr(err error) error {
	switch {
	case isUniqueViolation(err, models.BookISBNIndex):
		return apperr.Conflict(lending.MsgISBNExists)
	case isForeignKeyViolation(err):
		return apperr.NotFound(lending.MsgCategoryNotFound)
	}
	return err
}

func (r *Repo) CreateBook(ctx context.Context, in models.BookInput) (*models.Book, error) {
	b := models.Book{Available: true}
	in.Apply(&b)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCategory(tx, in.CategoryID); err != nil {
			return err
		}
		return bookWriteErr(tx.Create(&b).Error)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) ListBooks(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	out := []models.Book{}
	if f.Limit == 0 {
		return out, nil
	}
	q := r.DB.WithContext(ctx).Model(&models.Book{})
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Available != nil {
		q = q.Where("available = ?", *f.Available)
	}
	err := q.Order("id ASC").Offset(f.Skip).Limit(f.Limit).Find(&out).Error
	return out, err
}

func (r *Repo) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	var b models.Book
	if err := r.DB.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err, lending.MsgBookNotFound)
	}
	return &b, nil
}

// UpdateBook replaces the editable fields. available is never part of the UPDATE.
func (r *Repo) UpdateBook(ctx context.Context, id uint, in models.BookInput) (*models.Book, error) {
	var b models.Book
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
			return notFound(err, lending.MsgBookNotFound)
		}
		if err := lockCategory(tx, in.CategoryID); err != nil {
			return err
		}
		in.Apply(&b)
		err := tx.Model(&b).
			Select("title", "author", "isbn", "publication_year", "category_id", "updated_at").
			Updates(&b).Error
		return bookWriteErr(err)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) DeleteBook(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
			return notFound(err, lending.MsgBookNotFound)
		}
		if !b.Available {
			return apperr.InvalidState(lending.MsgBookOnLoan)
		}
		var n int64
		if err := tx.Model(&models.Loan{}).Where("book_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.InvalidState(lending.MsgBookHasHistory)
		}
		if err := tx.Delete(&b).Error; err != nil {
			if isForeignKeyViolation(err) {
				return apperr.InvalidState(lending.MsgBookHasHistory)
			}
			return err
		}
		return nil
	})
}
