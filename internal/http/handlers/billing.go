package handlers

import (
	"errors"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/gateway"
	"aqgateway/internal/ledger"
)

type topupRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// Topup credits the caller's business account, provisioning it on first
// use. The external payment reference keys the grant, so a replayed
// webhook acknowledges without granting twice.
func Topup(db *gorm.DB, l *ledger.Ledger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p, ok := MustPrincipal(ctx)
		if !ok {
			return
		}

		var req topupRequest
		if !decodeBody(ctx, &req) {
			return
		}
		if req.Amount <= 0 {
			badRequest(ctx, "amount must be positive")
			return
		}
		if req.Reference == "" {
			badRequest(ctx, "reference required")
			return
		}

		biz := dbpkg.Business{UserID: p.UserID, Plan: dbpkg.PlanFree}
		if err := db.Where("user_id = ?", p.UserID).FirstOrCreate(&biz).Error; err != nil {
			internalError(ctx, "failed to provision account")
			return
		}

		err := l.Credit(p.UserID, req.Amount, req.Reference)
		if errors.Is(err, ledger.ErrDuplicateReference) {
			// Idempotent: the grant was already applied.
			credits, _, berr := l.Balance(p.UserID)
			if berr != nil {
				internalError(ctx, "database error")
				return
			}
			gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
				"ok": true, "duplicate": true, "credits": credits,
			})
			return
		}
		if err != nil {
			internalError(ctx, "failed to credit account")
			return
		}

		credits, plan, err := l.Balance(p.UserID)
		if err != nil {
			internalError(ctx, "database error")
			return
		}
		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
			"ok": true, "credits": credits, "plan": plan,
		})
	}
}
