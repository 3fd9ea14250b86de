package controllers

import (
	"net/http"

	"library_lending/app"
	"library_lending/lending"
	"library_lending/models"
)

type CategoryController struct{ *Srv }

func NewCategoryController(s *Srv) *CategoryController { return &CategoryController{Srv: s} }

func (cc *CategoryController) Create(c *app.Ctx) {
	var in models.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		cc.badRequestBody(c, err)
		return
	}
	cat, err := cc.Lending.CreateCategory(c.Request.Context(), in)
	if err != nil {
		cc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// List ?skip=&limit=
func (cc *CategoryController) List(c *app.Ctx) {
	p, err := bindPage(c)
	if err != nil {
		cc.respondErr(c, err)
		return
	}
	cats, err := cc.Lending.ListCategories(c.Request.Context(), p)
	if err != nil {
		cc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (cc *CategoryController) Get(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		cc.respondErr(c, err)
		return
	}
	cat, err := cc.Lending.GetCategory(c.Request.Context(), id)
	if err != nil {
		cc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (cc *CategoryController) Delete(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		cc.respondErr(c, err)
		return
	}
	if err := cc.Lending.DeleteCategory(c.Request.Context(), id); err != nil {
		cc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": lending.MsgCategoryDeleted})
}
