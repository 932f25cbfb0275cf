package middleware

import (
	"net/http"
	"strings"
)

const (
	MethodField          = "_method"
	MethodOverrideHeader = "X-HTTP-Method-Override"
)

var overridable = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// MethodOverride lets HTML forms reach PUT and DELETE routes. Only POST
// requests are rewritten, and only to PUT, PATCH or DELETE.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			method := r.Header.Get(MethodOverrideHeader)
			if method == "" && isForm(r) {
				method = r.PostFormValue(MethodField)
			}
			method = strings.ToUpper(strings.TrimSpace(method))
			if overridable[method] {
				r.Method = method
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
