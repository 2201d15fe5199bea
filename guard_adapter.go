package session

import (
	"net/http"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Middleware adapts the guard to a go-router middleware for a route with the
// given metadata flags. Redirects follow the usual form-flow convention: 303
// for non-GET requests, 302 for GET.
func (g *Guard) Middleware(route Route) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			target := route
			if target.Path == "" {
				target.Path = c.OriginalURL()
			}

			decision, err := g.Check(c.Context(), target)
			if err != nil {
				g.logger.Error("navigation check failed: %s", err)
				return err
			}

			if decision.Allowed {
				return next(c)
			}

			g.logger.Info(
				"navigation redirect",
				"route", target.Name,
				"details", print.MaybePrettyJSON(map[string]any{
					"destination": decision.RedirectTo,
					"reason":      decision.Reason,
				}),
			)

			statusCode := http.StatusSeeOther
			if c.Method() == string(router.GET) {
				statusCode = http.StatusFound
			}
			return c.Redirect(decision.RedirectTo, statusCode)
		}
	}
}
