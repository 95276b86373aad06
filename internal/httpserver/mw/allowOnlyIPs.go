package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/utils"
)

// AllowOnlyCIDRS guards the admin endpoints (render trigger, scout, metrics)
// with an IP/CIDR allow list. An empty list lets everything through.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}
	log.Debug("admin allow list enabled",
		logger.Strings("rules", allowed),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if m.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("admin request rejected",
				logger.String("remote_ip", ip),
				logger.String("remote_addr", r.RemoteAddr),
				logger.String("path", r.URL.Path))
			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}
