package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aqgateway/internal/auth"
	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/forecast"
	"aqgateway/internal/ledger"
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

// setup seeds one business user with a live API key and returns the
// gateway plus the raw key.
func setup(t *testing.T, credits int64) (*Gateway, *gorm.DB, string, uint) {
	t.Helper()
	db := testDB(t)

	user := dbpkg.User{Username: "acme", PasswordHash: "x", Role: dbpkg.RoleBusiness}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&dbpkg.Business{UserID: user.ID, Credits: credits}).Error)

	raw, hash, err := auth.GenerateToken("aq_")
	require.NoError(t, err)
	require.NoError(t, db.Create(&dbpkg.APIKey{
		UserID: user.ID, Name: "test", KeyHash: hash, Prefix: raw[:10],
	}).Error)

	resolver := auth.NewResolver(auth.NewSessionVerifier(db), auth.NewAPIKeyVerifier(db))
	return New(resolver, ledger.New(db)), db, raw, user.ID
}

func call(t *testing.T, h fasthttp.RequestHandler, bearer string) (*fasthttp.RequestCtx, map[string]any) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	if bearer != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+bearer)
	}
	h(&ctx)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return &ctx, body
}

func okOperation(fields map[string]any) Operation {
	return func(_ *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		return fields, nil
	}
}

func TestMeteredSuccessEnvelope(t *testing.T) {
	g, db, key, _ := setup(t, 100)

	h := g.Metered(CostSites, "/v1/sites", okOperation(map[string]any{"data": "sites"}))
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "sites", body["data"])
	assert.Equal(t, float64(10), body["credits_used"])
	assert.Equal(t, float64(90), body["credits_remaining"])

	var count int64
	require.NoError(t, db.Model(&dbpkg.UsageLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMeteredUnauthenticated(t *testing.T) {
	g, db, _, _ := setup(t, 100)

	h := g.Metered(CostSites, "/v1/sites", okOperation(nil))

	ctx, body := call(t, h, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, CodeUnauthenticated, body["code"])

	ctx, body = call(t, h, "not-a-key")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, CodeUnauthenticated, body["code"])

	// No charge, no usage row: 401 has no side effects.
	var biz dbpkg.Business
	require.NoError(t, db.First(&biz).Error)
	assert.Equal(t, int64(100), biz.Credits)

	var count int64
	require.NoError(t, db.Model(&dbpkg.UsageLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMeteredInsufficientCredits(t *testing.T) {
	g, db, key, _ := setup(t, 5)

	h := g.Metered(CostSites, "/v1/sites", okOperation(nil))
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusPaymentRequired, ctx.Response.StatusCode())
	assert.Equal(t, CodeInsufficientCredits, body["code"])
	assert.Equal(t, float64(10), body["required"])
	assert.Equal(t, float64(5), body["available"])

	// Balance unchanged afterwards.
	var biz dbpkg.Business
	require.NoError(t, db.First(&biz).Error)
	assert.Equal(t, int64(5), biz.Credits)
}

func TestMeteredNoAccount(t *testing.T) {
	g, db, key, userID := setup(t, 100)
	require.NoError(t, db.Where("user_id = ?", userID).Delete(&dbpkg.Business{}).Error)

	h := g.Metered(CostSites, "/v1/sites", okOperation(nil))
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusPaymentRequired, ctx.Response.StatusCode())
	assert.Equal(t, CodeNoAccount, body["code"])
}

func TestMeteredPayOnAttempt(t *testing.T) {
	g, db, key, _ := setup(t, 200)

	h := g.Metered(CostForecast, "/v1/forecast", func(_ *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		return nil, forecast.ErrUpstreamFailure
	})
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
	assert.Equal(t, CodeUpstreamFailure, body["code"])

	// Pay on attempt: the credit stays consumed and logged even though
	// the upstream call failed.
	var biz dbpkg.Business
	require.NoError(t, db.First(&biz).Error)
	assert.Equal(t, int64(100), biz.Credits)

	var count int64
	require.NoError(t, db.Model(&dbpkg.UsageLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMeteredUpstreamTimeout(t *testing.T) {
	g, _, key, _ := setup(t, 200)

	h := g.Metered(CostForecast, "/v1/forecast", func(_ *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		return nil, forecast.ErrUpstreamTimeout
	})
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusGatewayTimeout, ctx.Response.StatusCode())
	assert.Equal(t, CodeUpstreamTimeout, body["code"])
}

func TestMeteredNotFound(t *testing.T) {
	g, _, key, _ := setup(t, 200)

	h := g.Metered(CostSiteData, "/v1/sites/{id}/data", func(_ *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		return nil, errors.Join(ErrNotFound, errors.New("data not found for site_99"))
	})
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, CodeNotFound, body["code"])
}

func TestMeteredFreeOperationSkipsLedger(t *testing.T) {
	g, db, key, userID := setup(t, 100)
	// Even without a business account, a zero-cost operation works.
	require.NoError(t, db.Where("user_id = ?", userID).Delete(&dbpkg.Business{}).Error)

	h := g.Metered(CostCredits, "/v1/credits", okOperation(map[string]any{"credits": 0}))
	ctx, body := call(t, h, key)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.NotContains(t, body, "credits_used")
}
