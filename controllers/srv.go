// controllers/srv.go
package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"library_lending/app"
	"library_lending/apperr"
	"library_lending/lending"
	"library_lending/models"
)

type Srv struct {
	Lending *lending.Service
	Log     *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{Lending: a.Lending, Log: a.Log}
}

// --- helpers ---

// respondErr 统一错误出口：业务错误给出原文，其余只记日志、返回通用提示
func (s *Srv) respondErr(c *app.Ctx, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.Log.ErrorContext(c.Request.Context(), "http.internal_error",
			"err", err, "path", c.Request.URL.Path, "request_id", app.RequestIDFrom(c))
	}
	c.JSON(status, app.H{"error": apperr.Message(err, app.MsgInternal)})
}

func (s *Srv) badRequestBody(c *app.Ctx, err error) {
	c.JSON(http.StatusUnprocessableEntity, app.H{"error": err.Error()})
}

func pathID(c *app.Ctx, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Validation(name + " must be a positive integer")
	}
	return uint(n), nil
}

func queryUint(c *app.Ctx, name string) (*uint, error) {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, apperr.Validation(name + " must be a non-negative integer")
	}
	if n == 0 {
		// id 从 1 开始，0 视为未过滤
		return nil, nil
	}
	u := uint(n)
	return &u, nil
}

func queryBool(c *app.Ctx, name string) (*bool, error) {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation(name + " must be true or false")
	}
	return &b, nil
}

func bindPage(c *app.Ctx) (models.Page, error) {
	p := models.DefaultPage()
	if err := c.ShouldBindQuery(&p); err != nil {
		return p, apperr.Wrap(apperr.KindValidation, "skip and limit must be integers", err)
	}
	return p, p.Validate()
}
