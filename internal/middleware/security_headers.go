package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders adds security-related HTTP headers to responses
type SecurityHeaders struct {
	isDevelopment bool
}

// NewSecurityHeaders creates a new security headers middleware
func NewSecurityHeaders(isDevelopment bool) *SecurityHeaders {
	return &SecurityHeaders{
		isDevelopment: isDevelopment,
	}
}

// Apply sets the security headers on every response
func (sh *SecurityHeaders) Apply() gin.HandlerFunc {
	// Restrictive CSP suitable for a JSON API; loosened in development
	// for debugging tools
	csp := "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	if sh.isDevelopment {
		csp = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; " +
			"frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()

		header.Set("X-Frame-Options", "DENY")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("Content-Security-Policy", csp)
		header.Set("Referrer-Policy", "no-referrer")
		header.Set("X-Permitted-Cross-Domain-Policies", "none")

		// HSTS only outside development to keep local HTTP usable
		if !sh.isDevelopment {
			header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
