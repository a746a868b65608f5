package telephony

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"

	"wakeup-coach/pkg/logger"
)

const signatureHeader = "X-Twilio-Signature"

// RequireSignature rejects any webhook whose X-Twilio-Signature does not
// match the request. Signature failures never fall through to dialogue logic.
//
// The signature is computed by the carrier over the public URL it called, so
// behind a reverse proxy the URL must be reconstructed from forwarding
// headers, not from the local listener address.
func RequireSignature(authToken string) gin.HandlerFunc {
	validator := client.NewRequestValidator(authToken)

	return func(c *gin.Context) {
		log := logger.FromGin(c)

		sig := c.GetHeader(signatureHeader)
		if sig == "" {
			log.Warn("webhook missing signature", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing signature"})
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}

		if !validator.Validate(PublicRequestURL(c.Request), params, sig) {
			log.Warn("webhook signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

// PublicRequestURL reconstructs the URL the carrier signed. Forwarded-proto
// and forwarded-host headers win over the local request line; hosts without
// an explicit port get 8443 for https and 80 for http appended, matching the
// ports the carrier dials.
func PublicRequestURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if !strings.Contains(host, ":") {
		if proto == "https" {
			host += ":8443"
		} else {
			host += ":80"
		}
	}
	return proto + "://" + host + r.URL.RequestURI()
}
