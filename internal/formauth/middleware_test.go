package formauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func postForm(token string) *http.Request {
	form := url.Values{}
	if token != "" {
		form.Set(fieldToken, token)
	}
	req := httptest.NewRequest(http.MethodPost, "/mint", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestMiddleware_AllowsIssuedToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := &Issuer{
		Secret: "secret",
		MaxAge: time.Hour,
		Now: func() time.Time {
			return now
		},
	}

	rec := httptest.NewRecorder()
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	v.Middleware(handler).ServeHTTP(rec, postForm(v.Issue()))

	if !called {
		t.Fatalf("handler was not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_AcceptsHeaderToken(t *testing.T) {
	v := &Issuer{Secret: "secret", MaxAge: time.Hour}

	req := httptest.NewRequest(http.MethodPost, "/mint", nil)
	req.Header.Set(headerToken, v.Issue())
	rec := httptest.NewRecorder()

	v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := &Issuer{
		Secret: "secret",
		MaxAge: time.Hour,
		Now: func() time.Time {
			return now
		},
	}
	other := &Issuer{Secret: "other", MaxAge: time.Hour, Now: v.Now}
	old := &Issuer{Secret: "secret", MaxAge: time.Hour, Now: func() time.Time { return now.Add(-2 * time.Hour) }}

	cases := map[string]string{
		"missing":   "",
		"malformed": "deadbeef",
		"forged":    other.Issue(),
		"stale":     old.Issue(),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})).ServeHTTP(rec, postForm(token))

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMiddleware_EmptySecretDisablesCheck(t *testing.T) {
	v := &Issuer{}
	rec := httptest.NewRecorder()
	v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, postForm(""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
