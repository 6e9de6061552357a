package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var (
	keyA = []byte(strings.Repeat("a", 32))
	keyB = []byte(strings.Repeat("b", 32))
)

func TestCookieCodecRoundTrip(t *testing.T) {
	codec := NewCookieCodec(keyA)

	v := codec.EncodeSessionID("sess-1")
	if !strings.HasPrefix(v, "sess-1.") {
		t.Fatalf("expected signed value, got %q", v)
	}
	id, ok := codec.DecodeSessionID(v)
	if !ok || id != "sess-1" {
		t.Fatalf("decode = %q, %v", id, ok)
	}
}

func TestCookieCodecRejectsTampering(t *testing.T) {
	codec := NewCookieCodec(keyA)
	v := codec.EncodeSessionID("sess-1")
	_, sig, _ := strings.Cut(v, ".")

	for _, bad := range []string{
		"",
		"sess-1",
		"sess-1.",
		".abc",
		v + "x",
		"sess-2." + sig,
		"sess-1.!!!notbase64",
	} {
		if id, ok := codec.DecodeSessionID(bad); ok {
			t.Fatalf("%q decoded to %q", bad, id)
		}
	}
}

func TestCookieCodecRotation(t *testing.T) {
	old := NewCookieCodec(keyA)
	legacy := old.EncodeSessionID("sess-1")

	rotated := NewCookieCodec(keyB, keyA)
	id, ok := rotated.DecodeSessionID(legacy)
	if !ok || id != "sess-1" {
		t.Fatalf("cookie signed with previous key rejected")
	}
	if !rotated.NeedsResign(legacy) {
		t.Fatalf("expected previous-key cookie to need resigning")
	}

	fresh := rotated.EncodeSessionID("sess-1")
	if fresh == legacy {
		t.Fatalf("expected new cookies to use the current key")
	}
	if rotated.NeedsResign(fresh) {
		t.Fatalf("current-key cookie should not need resigning")
	}
	if _, ok := old.DecodeSessionID(fresh); ok {
		t.Fatalf("old codec must not accept the new key")
	}

	retired := NewCookieCodec(keyB)
	if _, ok := retired.DecodeSessionID(legacy); ok {
		t.Fatalf("dropped key still accepted")
	}
}

func TestCookieCodecUnsigned(t *testing.T) {
	codec := NewCookieCodec(nil, keyA)
	if v := codec.EncodeSessionID("abc"); v != "abc" {
		t.Fatalf("expected passthrough, got %q", v)
	}
	if id, ok := codec.DecodeSessionID("abc"); !ok || id != "abc" {
		t.Fatalf("expected unsigned cookie to decode")
	}
	if _, ok := codec.DecodeSessionID(""); ok {
		t.Fatalf("empty cookie must not decode")
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "v", 10*time.Minute, true)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "v" || c.MaxAge != 600 {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}

	rr = httptest.NewRecorder()
	ClearSessionCookie(rr, false)
	cookies = rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 || cookies[0].Value != "" {
		t.Fatalf("unexpected clear cookie: %+v", cookies)
	}
}
