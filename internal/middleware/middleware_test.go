package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var secret = []byte("test-secret")

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(id))
	})
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken(secret, "user_1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	id, err := ParseToken(secret, token)
	if err != nil || id != "user_1" {
		t.Fatalf("expected user_1, got %q (%v)", id, err)
	}

	if _, err := ParseToken([]byte("other"), token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}

	expired, _ := IssueToken(secret, "user_1", -time.Minute)
	if _, err := ParseToken(secret, expired); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestJWTAuth(t *testing.T) {
	h := JWTAuth(secret)(echoUser())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}

	token, _ := IssueToken(secret, "user_7", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user_7" {
		t.Fatalf("expected user_7, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthenticate_CookieAndAnonymous(t *testing.T) {
	h := Authenticate(secret)(echoUser())
	token, _ := IssueToken(secret, "user_2", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "user_2" {
		t.Fatalf("expected cookie user, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "garbage"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("invalid token should pass anonymously, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestMethodOverride(t *testing.T) {
	var seen string
	h := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Method
	}))

	tests := []struct {
		name   string
		method string
		form   url.Values
		header string
		want   string
	}{
		{"form put", http.MethodPost, url.Values{"_method": {"put"}}, "", http.MethodPut},
		{"form delete", http.MethodPost, url.Values{"_method": {"DELETE"}}, "", http.MethodDelete},
		{"header", http.MethodPost, nil, "DELETE", http.MethodDelete},
		{"not overridable", http.MethodPost, url.Values{"_method": {"GET"}}, "", http.MethodPost},
		{"only post", http.MethodGet, url.Values{"_method": {"DELETE"}}, "", http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/posts/1", strings.NewReader(tt.form.Encode()))
			if tt.form != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			if tt.header != "" {
				req.Header.Set(MethodOverrideHeader, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if seen != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, seen)
			}
		})
	}
}

func TestMetrics_Instrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := m.Instrument("GET /posts/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/x", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/y", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var got float64
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			got += metric.GetCounter().GetValue()
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() != "404" {
					t.Fatalf("expected status 404, got %s", lp.GetValue())
				}
			}
		}
	}
	if got != 2 {
		t.Fatalf("expected 2 requests counted, got %v", got)
	}
}
