package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader carries the token on unsafe requests from browsers.
const CSRFTokenHeader = "X-CSRF-Token"

const contextKeyCSRFToken = "csrf_token"

// CSRFMiddleware protects cookie-authenticated requests. Requests with a
// valid bearer token skip the check since they carry no ambient
// credentials. The token for the current session is exposed on the
// X-CSRF-Token response header of safe requests. Without secure cookies
// requests are treated as plain HTTP for the origin check.
func CSRFMiddleware(secret []byte, secure bool, tokens TokenValidator) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if hasValidBearer(c, tokens) {
			c.Next()
			return
		}

		if !secure {
			c.Request = csrf.PlaintextHTTPRequest(c.Request)
		}

		aborted := true
		protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			aborted = false
			token := csrf.Token(r)
			c.Set(contextKeyCSRFToken, token)
			c.Header(CSRFTokenHeader, token)
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if aborted {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing","code":"csrf"}`))
}

func hasValidBearer(c *gin.Context, tokens TokenValidator) bool {
	token := bearerToken(c)
	if token == "" || tokens == nil {
		return false
	}
	_, err := tokens.ValidateToken(c.Request.Context(), token)
	return err == nil
}

// GetCSRFToken returns the token set by CSRFMiddleware.
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(contextKeyCSRFToken)
}
