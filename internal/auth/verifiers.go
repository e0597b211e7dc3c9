package auth

import (
	"bytes"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "aqgateway/internal/db"
)

// SessionCookie is the cookie carrying the raw session token.
const SessionCookie = "aq_session"

// SessionVerifier validates the session cookie against the sessions
// table. Expired sessions are a miss, not an error.
type SessionVerifier struct {
	db *gorm.DB
}

func NewSessionVerifier(db *gorm.DB) *SessionVerifier {
	return &SessionVerifier{db: db}
}

func (v *SessionVerifier) Resolve(ctx *fasthttp.RequestCtx) (*Principal, error) {
	cookie := ctx.Request.Header.Cookie(SessionCookie)
	if len(cookie) == 0 {
		return nil, nil
	}

	var sess dbpkg.Session
	err := v.db.Where("token_hash = ?", HashToken(string(cookie))).
		Preload("User").First(&sess).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil, nil
	}

	return &Principal{
		UserID:      sess.User.ID,
		Kind:        KindSession,
		DisplayName: sess.User.DisplayName,
		Role:        sess.User.Role,
	}, nil
}

// APIKeyVerifier validates "Authorization: Bearer <token>" against the
// stored key hashes. Revoked keys fail immediately.
type APIKeyVerifier struct {
	db *gorm.DB
}

func NewAPIKeyVerifier(db *gorm.DB) *APIKeyVerifier {
	return &APIKeyVerifier{db: db}
}

func (v *APIKeyVerifier) Resolve(ctx *fasthttp.RequestCtx) (*Principal, error) {
	header := ctx.Request.Header.Peek("Authorization")
	const prefix = "Bearer "
	if !bytes.HasPrefix(header, []byte(prefix)) {
		return nil, nil
	}
	token := strings.TrimSpace(string(header[len(prefix):]))
	if token == "" {
		return nil, nil
	}

	var key dbpkg.APIKey
	err := v.db.Where("key_hash = ? AND revoked = ?", HashToken(token), false).
		Preload("User").First(&key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &Principal{
		UserID:      key.User.ID,
		Kind:        KindAPIKey,
		DisplayName: key.User.DisplayName,
		Role:        key.User.Role,
	}, nil
}

// CreateSession issues a session row for the user and returns the raw
// cookie value.
func CreateSession(db *gorm.DB, userID uint, ttl time.Duration) (string, error) {
	raw, hash, err := GenerateToken("")
	if err != nil {
		return "", err
	}
	sess := dbpkg.Session{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := db.Create(&sess).Error; err != nil {
		return "", err
	}
	return raw, nil
}

// DeleteSession removes the session behind a raw cookie value. Unknown
// tokens are a no-op.
func DeleteSession(db *gorm.DB, rawToken string) error {
	return db.Where("token_hash = ?", HashToken(rawToken)).Delete(&dbpkg.Session{}).Error
}
