package controllers

import (
	"context"
	"net/http"
	"time"

	"library_lending/app"
)

func (s *Srv) Health(c *app.Ctx) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	store := s.Lending.StoreKind()
	if err := s.Lending.Ping(ctx); err != nil {
		s.Log.WarnContext(ctx, "health.store_unreachable", "err", err, "store", store)
		c.JSON(http.StatusServiceUnavailable, app.H{"ok": false, "store": store})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "store": store})
}
