package router

import (
	"net/http"

	"github.com/shandysiswandi/gostepup/internal/pkg/config"
)

// middlewareMaintenance answers 503 while app.maintenance.enabled is set, or
// for routes listed in app.maintenance.endpoints. Both keys are read per
// request so a config reload takes effect without a restart. /health is
// never blocked.
func middlewareMaintenance(cfg config.Config) Middleware {
	if cfg == nil {
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			if route != "/health" && underMaintenance(cfg, route) {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func underMaintenance(cfg config.Config, route string) bool {
	if cfg.GetBool("app.maintenance.enabled") {
		return true
	}
	for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
		if endpoint == route {
			return true
		}
	}
	return false
}
