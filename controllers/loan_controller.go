package controllers

import (
	"net/http"

	"library_lending/app"
	"library_lending/lending"
	"library_lending/models"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

// 借出
func (lc *LoanController) Borrow(c *app.Ctx) {
	var in models.LoanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		lc.badRequestBody(c, err)
		return
	}
	loan, err := lc.Lending.Borrow(c.Request.Context(), in)
	if err != nil {
		lc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// 归还
func (lc *LoanController) Return(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		lc.respondErr(c, err)
		return
	}
	if _, err := lc.Lending.Return(c.Request.Context(), id); err != nil {
		lc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": lending.MsgBookReturned})
}

func (lc *LoanController) Get(c *app.Ctx) {
	id, err := pathID(c, "id")
	if err != nil {
		lc.respondErr(c, err)
		return
	}
	loan, err := lc.Lending.GetLoan(c.Request.Context(), id)
	if err != nil {
		lc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// List ?skip=&limit=&book_id=&returned=
func (lc *LoanController) List(c *app.Ctx) {
	p, err := bindPage(c)
	if err != nil {
		lc.respondErr(c, err)
		return
	}
	f := models.LoanFilter{Page: p}
	if f.BookID, err = queryUint(c, "book_id"); err != nil {
		lc.respondErr(c, err)
		return
	}
	if f.Returned, err = queryBool(c, "returned"); err != nil {
		lc.respondErr(c, err)
		return
	}
	loans, err := lc.Lending.ListLoans(c.Request.Context(), f)
	if err != nil {
		lc.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}
