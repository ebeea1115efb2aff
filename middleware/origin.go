package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"SyncProject/tools/errs"
)

// Origin rejects websocket upgrades whose Origin header is not listed.
// An empty list accepts every origin; requests without an Origin header
// (non-browser clients) always pass.
func Origin(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(set) == 0 || !isUpgrade(c.Request) {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, errs.ErrOriginDenied.WithDetail(origin))
			return
		}
		c.Next()
	}
}

func isUpgrade(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
