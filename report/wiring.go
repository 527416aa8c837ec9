package report

import (
	"context"

	"azure-cost-report/connectors/acs"
	"azure-cost-report/connectors/azure"
	"azure-cost-report/connectors/blob"
	"azure-cost-report/connectors/config"
)

// FromSettings wires concrete connectors into a Runner, instantiating
// only the sinks the capability set enables.
func FromSettings(s *config.Settings) (*Runner, error) {
	r := &Runner{
		Source:     azure.NewClient(s.TenantID, s.ClientID, s.ClientSecret),
		Sender:     s.SenderAddress,
		Recipients: s.Recipients,
	}
	if s.Delivery.Storage {
		storage, err := blob.NewClient(s.StorageConnectionString, s.ContainerName)
		if err != nil {
			return nil, err
		}
		r.Storage = storage
	}
	if s.Delivery.Email {
		email, err := acs.NewClient(s.ACSConnectionString)
		if err != nil {
			return nil, err
		}
		r.Email = email
	}
	return r, nil
}

// Execute is the whole job: load and validate configuration, wire the
// connectors, run. Configuration problems short-circuit before any
// network call.
func Execute(ctx context.Context, configPath string) Outcome {
	settings, err := config.Load(configPath)
	if err != nil {
		return Failure(KindConfiguration, err)
	}
	runner, err := FromSettings(settings)
	if err != nil {
		return Failure(KindConfiguration, err)
	}
	return runner.Run(ctx)
}
