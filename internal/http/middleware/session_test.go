package middleware

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aqgateway/internal/auth"
	dbpkg "aqgateway/internal/db"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, dbpkg.Migrate(db))
	return db
}

func seed(t *testing.T, db *gorm.DB, role string) (sessionToken, apiKey string) {
	t.Helper()
	user := dbpkg.User{Username: "u-" + role, PasswordHash: "x", Role: role}
	require.NoError(t, db.Create(&user).Error)

	sessionToken, err := auth.CreateSession(db, user.ID, time.Hour)
	require.NoError(t, err)

	raw, hash, err := auth.GenerateToken("aq_")
	require.NoError(t, err)
	require.NoError(t, db.Create(&dbpkg.APIKey{
		UserID: user.ID, Name: "k", KeyHash: hash, Prefix: raw[:10],
	}).Error)
	return sessionToken, raw
}

func okHandler(called *bool) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		*called = true
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
}

func errCode(t *testing.T, ctx *fasthttp.RequestCtx) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	code, _ := body["code"].(string)
	return code
}

func TestSessionAuthAcceptsSessionCookie(t *testing.T) {
	db := testDB(t)
	token, _ := seed(t, db, dbpkg.RoleBusiness)
	resolver := auth.NewResolver(auth.NewSessionVerifier(db), auth.NewAPIKeyVerifier(db))

	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetCookie(auth.SessionCookie, token)
	SessionAuth(resolver)(okHandler(&called))(&ctx)

	assert.True(t, called)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestSessionAuthRejectsAPIKey(t *testing.T) {
	db := testDB(t)
	_, apiKey := seed(t, db, dbpkg.RoleBusiness)
	resolver := auth.NewResolver(auth.NewSessionVerifier(db), auth.NewAPIKeyVerifier(db))

	// A valid bearer key still cannot reach session-only routes.
	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Bearer "+apiKey)
	SessionAuth(resolver)(okHandler(&called))(&ctx)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "UNAUTHENTICATED", errCode(t, &ctx))
}

func TestSessionAuthRejectsAnonymous(t *testing.T) {
	db := testDB(t)
	resolver := auth.NewResolver(auth.NewSessionVerifier(db), auth.NewAPIKeyVerifier(db))

	called := false
	var ctx fasthttp.RequestCtx
	SessionAuth(resolver)(okHandler(&called))(&ctx)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestRequireRoleForbidsWrongRole(t *testing.T) {
	db := testDB(t)
	token, _ := seed(t, db, dbpkg.RoleBusiness)
	resolver := auth.NewResolver(auth.NewSessionVerifier(db), auth.NewAPIKeyVerifier(db))

	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetCookie(auth.SessionCookie, token)
	SessionAuth(resolver)(RequireRole(dbpkg.RoleGovt)(okHandler(&called)))(&ctx)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	assert.Equal(t, "FORBIDDEN", errCode(t, &ctx))
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	db := testDB(t)
	token, _ := seed(t, db, dbpkg.RoleGovt)
	resolver := auth.NewResolver(auth.NewSessionVerifier(db), auth.NewAPIKeyVerifier(db))

	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetCookie(auth.SessionCookie, token)
	SessionAuth(resolver)(RequireRole(dbpkg.RoleGovt)(okHandler(&called)))(&ctx)

	assert.True(t, called)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}
