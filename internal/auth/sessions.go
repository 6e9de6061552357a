package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "ff_session"

// CookieCodec signs session ids with HMAC-SHA256. Cookies are always
// signed with the first key; the remaining keys are accepted on decode
// so a secret can be rotated without logging everyone out.
//
// A codec without keys passes ids through unsigned, which is only
// allowed outside prod.
type CookieCodec struct {
	keys [][]byte
}

func NewCookieCodec(current []byte, previous ...[]byte) CookieCodec {
	var c CookieCodec
	if len(current) == 0 {
		return c
	}
	for _, k := range append([][]byte{current}, previous...) {
		if len(k) == 0 {
			continue
		}
		c.keys = append(c.keys, append([]byte(nil), k...))
	}
	return c
}

func (c CookieCodec) signed() bool { return len(c.keys) > 0 }

func (c CookieCodec) EncodeSessionID(sessionID string) string {
	if !c.signed() {
		return sessionID
	}
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(sign(c.keys[0], sessionID))
}

func (c CookieCodec) DecodeSessionID(cookieValue string) (string, bool) {
	if !c.signed() {
		return cookieValue, cookieValue != ""
	}

	id, encSig, ok := strings.Cut(cookieValue, ".")
	if !ok || id == "" || encSig == "" {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil || len(sig) != sha256.Size {
		return "", false
	}
	for _, k := range c.keys {
		if hmac.Equal(sig, sign(k, id)) {
			return id, true
		}
	}
	return "", false
}

// NeedsResign reports whether a valid cookie was signed with a retired
// key and should be reissued.
func (c CookieCodec) NeedsResign(cookieValue string) bool {
	if !c.signed() {
		return false
	}
	id, ok := c.DecodeSessionID(cookieValue)
	return ok && c.EncodeSessionID(id) != cookieValue
}

func sign(key []byte, id string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(id))
	return mac.Sum(nil)
}

func SetSessionCookie(w http.ResponseWriter, cookieValue string, ttl time.Duration, secure bool) {
	c := sessionCookie(cookieValue, secure)
	c.MaxAge = int(ttl / time.Second)
	c.Expires = time.Now().Add(ttl)
	http.SetCookie(w, c)
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	c := sessionCookie("", secure)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func sessionCookie(value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
