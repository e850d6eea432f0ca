package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
)

const (
	SessionCookie = "graphwise_session"
	NonceHeader   = "X-WP-Nonce"
	NonceField    = "_wpnonce"

	// nonceTick is half the nonce lifetime; a nonce from the previous tick
	// is still accepted.
	nonceTick   = 12 * time.Hour
	maxFormBody = 1 << 20
)

// SessionIssuer hands browser pages a session cookie plus a nonce bound to
// it, and verifies that pair on the same-origin endpoints.
type SessionIssuer struct {
	secret []byte
	secure bool
	logger logger.Logger
	now    func() time.Time
}

// NewSessionIssuer builds an issuer. Without a secret a random one is
// generated, so nonces do not survive a restart.
func NewSessionIssuer(secret string, secure bool, log logger.Logger) *SessionIssuer {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("auth: cannot read random session secret: " + err.Error())
		}
		log.Warn("No session secret configured, using an ephemeral one", nil)
	}
	return &SessionIssuer{secret: key, secure: secure, logger: log, now: time.Now}
}

// Nonce returns the nonce for sid valid in the current tick.
func (s *SessionIssuer) Nonce(sid string) string {
	return s.nonceAt(sid, s.tick())
}

// Verify accepts a nonce from the current or the previous tick.
func (s *SessionIssuer) Verify(sid, nonce string) bool {
	if sid == "" || nonce == "" {
		return false
	}
	tick := s.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(nonce), []byte(s.nonceAt(sid, t))) {
			return true
		}
	}
	return false
}

func (s *SessionIssuer) tick() int64 {
	return s.now().Unix() / int64(nonceTick/time.Second)
}

func (s *SessionIssuer) nonceAt(sid string, tick int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(sid))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue is the GET /graphwise/v1/session handler. An existing session
// cookie is reused.
func (s *SessionIssuer) Issue(c *gin.Context) {
	sid, err := c.Cookie(SessionCookie)
	if err != nil || sid == "" {
		sid = uuid.NewString()
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int((2 * nonceTick) / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"nonce":      s.Nonce(sid),
		"expires_in": int((2 * nonceTick) / time.Second),
	})
}

// Middleware rejects requests whose nonce does not match the session cookie.
// The nonce is read from X-WP-Nonce, then from a _wpnonce form or query field.
func (s *SessionIssuer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, _ := c.Cookie(SessionCookie)
		nonce := strings.TrimSpace(c.GetHeader(NonceHeader))
		if nonce == "" {
			nonce = s.formNonce(c)
		}

		if !s.Verify(sid, nonce) {
			abort(c, errors.NewForbiddenError("invalid or missing session nonce"), s.logger)
			return
		}
		c.Next()
	}
}

// formNonce reads _wpnonce without consuming the body for the handler.
func (s *SessionIssuer) formNonce(c *gin.Context) string {
	if v := c.Query(NonceField); v != "" {
		return v
	}
	if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		return ""
	}

	// Whatever was not read stays on the body so the size limit downstream
	// still sees the full request.
	rest := c.Request.Body
	body, err := io.ReadAll(io.LimitReader(rest, maxFormBody))
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}
	if err != nil {
		return ""
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return ""
	}
	return form.Get(NonceField)
}
