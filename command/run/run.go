package run

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"azure-cost-report/report"
)

// Run executes one report run from the command line and prints the
// same JSON envelope the HTTP trigger returns.
func Run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file (default $CONFIG_PATH or ./config.yml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out := report.Execute(context.Background(), *configPath)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if out.Code != http.StatusOK {
		return fmt.Errorf("report run failed with status %d", out.Code)
	}
	return nil
}
