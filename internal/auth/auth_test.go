package auth

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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

func seedUser(t *testing.T, db *gorm.DB, username, role string) dbpkg.User {
	t.Helper()
	u := dbpkg.User{Username: username, PasswordHash: "x", DisplayName: username, Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedKey(t *testing.T, db *gorm.DB, userID uint, revoked bool) string {
	t.Helper()
	raw, hash, err := GenerateToken("aq_")
	require.NoError(t, err)
	require.NoError(t, db.Create(&dbpkg.APIKey{
		UserID:  userID,
		Name:    "test",
		KeyHash: hash,
		Prefix:  raw[:10],
		Revoked: revoked,
	}).Error)
	return raw
}

func newResolver(db *gorm.DB) *Resolver {
	return NewResolver(NewSessionVerifier(db), NewAPIKeyVerifier(db))
}

func TestResolveAPIKey(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, "acme", dbpkg.RoleBusiness)
	raw := seedKey(t, db, user.ID, false)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Bearer "+raw)

	p := newResolver(db).Resolve(&ctx)
	require.NotNil(t, p)
	assert.Equal(t, KindAPIKey, p.Kind)
	assert.Equal(t, user.ID, p.UserID)
}

func TestResolveRevokedKey(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, "acme", dbpkg.RoleBusiness)
	raw := seedKey(t, db, user.ID, true)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Bearer "+raw)

	assert.Nil(t, newResolver(db).Resolve(&ctx))
}

func TestResolveMalformedHeader(t *testing.T) {
	db := testDB(t)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Token abcdef")
	assert.Nil(t, newResolver(db).Resolve(&ctx))

	ctx.Request.Header.Set("Authorization", "Bearer ")
	assert.Nil(t, newResolver(db).Resolve(&ctx))

	ctx.Request.Header.Set("Authorization", "Bearer not-a-real-key")
	assert.Nil(t, newResolver(db).Resolve(&ctx))
}

func TestSessionTakesPriorityOverStaleBearer(t *testing.T) {
	db := testDB(t)
	sessionUser := seedUser(t, db, "officer", dbpkg.RoleGovt)
	keyUser := seedUser(t, db, "acme", dbpkg.RoleBusiness)

	token, err := CreateSession(db, sessionUser.ID, time.Hour)
	require.NoError(t, err)
	rawKey := seedKey(t, db, keyUser.ID, false)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetCookie(SessionCookie, token)
	ctx.Request.Header.Set("Authorization", "Bearer "+rawKey)

	p := newResolver(db).Resolve(&ctx)
	require.NotNil(t, p)
	assert.Equal(t, KindSession, p.Kind)
	assert.Equal(t, sessionUser.ID, p.UserID)
}

func TestExpiredSessionFallsThroughToBearer(t *testing.T) {
	db := testDB(t)
	sessionUser := seedUser(t, db, "officer", dbpkg.RoleGovt)
	keyUser := seedUser(t, db, "acme", dbpkg.RoleBusiness)

	token, err := CreateSession(db, sessionUser.ID, -time.Minute)
	require.NoError(t, err)
	rawKey := seedKey(t, db, keyUser.ID, false)

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetCookie(SessionCookie, token)
	ctx.Request.Header.Set("Authorization", "Bearer "+rawKey)

	p := newResolver(db).Resolve(&ctx)
	require.NotNil(t, p)
	assert.Equal(t, KindAPIKey, p.Kind)
	assert.Equal(t, keyUser.ID, p.UserID)
}

func TestDeleteSession(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, "officer", dbpkg.RoleGovt)

	token, err := CreateSession(db, user.ID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, DeleteSession(db, token))

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetCookie(SessionCookie, token)
	assert.Nil(t, newResolver(db).Resolve(&ctx))
}
