package routes

import (
	"github.com/gin-gonic/gin"

	"library_lending/app"
	"library_lending/controllers"
)

// both 同时注册 "/x/" 与 "/x"，不做重定向
func both(g *gin.RouterGroup, method string, h gin.HandlersChain) {
	g.Handle(method, "/", h...)
	g.Handle(method, "", h...)
}

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	catCtl := controllers.NewCategoryController(s)
	bookCtl := controllers.NewBookController(s)
	loanCtl := controllers.NewLoanController(s)

	r.GET("/healthz", s.Health)

	// ------------------------------
	// 分类
	// ------------------------------
	cats := r.Group("/categories")
	{
		both(cats, "POST", gin.HandlersChain{catCtl.Create})
		both(cats, "GET", gin.HandlersChain{catCtl.List})
		cats.GET("/:id", catCtl.Get)
		cats.DELETE("/:id", catCtl.Delete)
	}

	// ------------------------------
	// 图书
	// ------------------------------
	books := r.Group("/books")
	{
		both(books, "POST", gin.HandlersChain{bookCtl.Create})
		both(books, "GET", gin.HandlersChain{bookCtl.List})
		books.GET("/:id", bookCtl.Get)
		books.PUT("/:id", bookCtl.Update)
		books.DELETE("/:id", bookCtl.Delete)
	}

	// ------------------------------
	// 借还
	// ------------------------------
	loans := r.Group("/loans")
	{
		// 重复提交同一 Idempotency-Key 时重放首次结果
		both(loans, "POST", gin.HandlersChain{app.Idempotent(a.Idem, "loans", a.Log), loanCtl.Borrow})
		both(loans, "GET", gin.HandlersChain{loanCtl.List})
		loans.GET("/:id", loanCtl.Get)
		loans.PUT("/:id/return", loanCtl.Return)
	}
}
