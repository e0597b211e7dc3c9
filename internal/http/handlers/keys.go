package handlers

import (
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"aqgateway/internal/auth"
	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/gateway"
)

// CreateKey mints a new API key for the logged-in user. The raw key is
// returned exactly once; only its hash and display prefix are stored.
func CreateKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p, ok := MustPrincipal(ctx)
		if !ok {
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if !decodeBody(ctx, &req) {
			return
		}
		if req.Name == "" {
			badRequest(ctx, "name required")
			return
		}

		raw, hash, err := auth.GenerateToken("aq_")
		if err != nil {
			internalError(ctx, "failed to generate key")
			return
		}

		key := dbpkg.APIKey{
			UserID:  p.UserID,
			Name:    req.Name,
			KeyHash: hash,
			Prefix:  raw[:10],
		}
		if err := db.Create(&key).Error; err != nil {
			internalError(ctx, "failed to store key")
			return
		}

		gateway.WriteJSON(ctx, fasthttp.StatusCreated, map[string]any{
			"id":     key.ID,
			"name":   key.Name,
			"prefix": key.Prefix,
			"key":    raw,
		})
	}
}

// RevokeKey permanently disables one of the caller's keys. Revocation
// takes effect on the next request carrying the key.
func RevokeKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p, ok := MustPrincipal(ctx)
		if !ok {
			return
		}

		var req struct {
			ID uint `json:"id"`
		}
		if !decodeBody(ctx, &req) {
			return
		}

		res := db.Model(&dbpkg.APIKey{}).
			Where("id = ? AND user_id = ?", req.ID, p.UserID).
			Update("revoked", true)
		if res.Error != nil {
			internalError(ctx, "failed to revoke key")
			return
		}
		if res.RowsAffected == 0 {
			gateway.WriteJSON(ctx, fasthttp.StatusNotFound, map[string]any{
				"error": "key not found", "code": gateway.CodeNotFound,
			})
			return
		}

		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true})
	}
}

// ListKeys returns the caller's keys without any secret material.
func ListKeys(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p, ok := MustPrincipal(ctx)
		if !ok {
			return
		}

		var keys []dbpkg.APIKey
		if err := db.Where("user_id = ?", p.UserID).Order("created_at DESC").Find(&keys).Error; err != nil {
			internalError(ctx, "database error")
			return
		}

		out := make([]map[string]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, map[string]any{
				"id":         k.ID,
				"name":       k.Name,
				"prefix":     k.Prefix,
				"revoked":    k.Revoked,
				"created_at": k.CreatedAt,
			})
		}
		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"keys": out})
	}
}
