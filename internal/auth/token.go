package auth

import (
	"net/http"
	"strings"
)

// AdminCookie is the cookie the back office stores its token in.
const AdminCookie = "admin_token"

// ExtractAccessToken returns the bearer token of an admin request. The
// Authorization header wins over the cookie; the scheme is matched
// case-insensitively.
func ExtractAccessToken(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok {
		if strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(AdminCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}

	return ""
}
