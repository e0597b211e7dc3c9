package handlers

import (
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"aqgateway/internal/auth"
	"aqgateway/internal/config"
	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/gateway"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the password and issues a session cookie. Accepts a JSON
// body or classic form fields.
func Login(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req loginRequest
		if strings.HasPrefix(string(ctx.Request.Header.ContentType()), "application/json") {
			if !decodeBody(ctx, &req) {
				return
			}
		} else {
			req.Username = string(ctx.PostArgs().Peek("username"))
			req.Password = string(ctx.PostArgs().Peek("password"))
		}
		if req.Username == "" || req.Password == "" {
			badRequest(ctx, "username and password required")
			return
		}

		var user dbpkg.User
		if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				loginFailed(ctx)
				return
			}
			internalError(ctx, "database error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			loginFailed(ctx)
			return
		}

		token, err := auth.CreateSession(db, user.ID, cfg.SessionTTL)
		if err != nil {
			internalError(ctx, "failed to create session")
			return
		}

		var c fasthttp.Cookie
		c.SetKey(auth.SessionCookie)
		c.SetValue(token)
		c.SetPath("/")
		c.SetHTTPOnly(true)
		c.SetMaxAge(int(cfg.SessionTTL.Seconds()))
		ctx.Response.Header.SetCookie(&c)

		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
			"ok":           true,
			"display_name": user.DisplayName,
			"role":         user.Role,
		})
	}
}

func loginFailed(ctx *fasthttp.RequestCtx) {
	gateway.WriteJSON(ctx, fasthttp.StatusUnauthorized, map[string]any{
		"error": "invalid username or password", "code": gateway.CodeUnauthenticated,
	})
}

// Logout deletes the session row and expires the cookie. Safe to call
// without a live session.
func Logout(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if raw := ctx.Request.Header.Cookie(auth.SessionCookie); len(raw) > 0 {
			_ = auth.DeleteSession(db, string(raw))
		}

		var c fasthttp.Cookie
		c.SetKey(auth.SessionCookie)
		c.SetValue("")
		c.SetPath("/")
		c.SetMaxAge(-1)
		ctx.Response.Header.SetCookie(&c)

		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true})
	}
}
