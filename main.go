package main

import (
	"fmt"
	"log/slog"
	"os"

	cmdrun "azure-cost-report/command/run"
	cmdserve "azure-cost-report/command/serve"
)

// Monthly Azure cost report job: enumerates the subscriptions a
// service principal can see, pulls the previous month's total cost for
// each, renders a CSV, and delivers it to Blob Storage and/or by ACS
// email. Triggered over HTTP (serve) or as a one-shot (run).

func main() {
	args := os.Args
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	if len(args) > 1 {
		sub := args[1]
		rest := append([]string{}, args[2:]...)
		switch sub {
		case "run":
			if err := cmdrun.Run(rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case "serve":
			if err := cmdserve.Run(rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: azure-cost-report run [-config config.yml] | serve [-addr :8080] [-config config.yml]\nENV: TENANT_ID, CLIENT_ID, CLIENT_SECRET, AZURE_STORAGE_CONNECTION_STRING, BLOB_CONTAINER_NAME, ACS_CONNECTION_STRING, ACS_SENDER_EMAIL, RECIPIENT_EMAIL; set CONFIG_PATH to point to a YAML config file (default ./config.yml)")
	os.Exit(2)
}
