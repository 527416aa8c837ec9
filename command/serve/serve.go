package serve

import (
	"flag"

	"github.com/labstack/echo/v4"

	"azure-cost-report/report"
)

// Run starts a small Echo server exposing the report trigger.
//
// Usage:
//
//	azure-cost-report serve [-addr :8080] [-config config.yml]
//
// Endpoints:
//
//	POST /api/report/run -> executes one report run, returns the JSON
//	                        envelope (200 success, 404 no subscriptions,
//	                        500 configuration/API/unexpected error)
//	GET  /api/report/run -> same, for schedulers that can only GET
func Run(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "http listen address (host:port)")
	configPath := fs.String("config", "", "path to YAML config file (default $CONFIG_PATH or ./config.yml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return newEcho(*configPath).Start(*addr)
}

func newEcho(configPath string) *echo.Echo {
	e := echo.New()

	trigger := func(c echo.Context) error {
		out := report.Execute(c.Request().Context(), configPath)
		return c.JSON(out.Code, out)
	}
	e.POST("/api/report/run", trigger)
	e.GET("/api/report/run", trigger)

	return e
}
