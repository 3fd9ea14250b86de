package controllers

import (
	"net/http"

	"library_lending/app"
	"library_lending/lending"
	"library_lending/models"
)

type BookController struct{ *Srv }

func NewBookController(s *Srv) *BookController { return &BookController{Srv: s} }

func (bc *BookController) Create(c *app.Ctx) {
	var in models.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bc.badRequestBody(c, err)
		return
	}
	b, err := bc.Lending.CreateBook(c.Request.Context(), in)
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// List ?skip=&limit=&category_id=&available=
func (bc *BookController) List(c *app.Ctx) {
	p, err := bindPage(c)
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	f := models.BookFilter{Page: p}
	if f.CategoryID, err = queryUint(c, "category_id"); err != nil {
		bc.respondErr(c, err)
		return
	}
	if f.Available, err = queryBool(c, "available"); err != nil {
		bc.respondErr(c, err)
		return
	}
	books, err := bc.Lending.ListBooks(c.Request.Context(), f)
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (bc *BookController) Get(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	b, err := bc.Lending.GetBook(c.Request.Context(), id)
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Update 整体替换可编辑字段；available 不接受外部写入
func (bc *BookController) Update(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	var in models.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bc.badRequestBody(c, err)
		return
	}
	b, err := bc.Lending.UpdateBook(c.Request.Context(), id, in)
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (bc *BookController) Delete(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		bc.respondErr(c, err)
		return
	}
	if err := bc.Lending.DeleteBook(c.Request.Context(), id); err != nil {
		bc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": lending.MsgBookDeleted})
}
