package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultContainer is used when no container name is configured.
const DefaultContainer = "azure-cost-reports"

// Delivery is the capability set selecting which sinks a run invokes.
// Both default to enabled; the YAML file turns them off individually.
type Delivery struct {
	Storage bool
	Email   bool
}

// Settings is everything one report run needs. Secrets come from the
// environment; the delivery capability set and non-secret overrides
// come from an optional YAML file.
type Settings struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	StorageConnectionString string
	ContainerName           string

	ACSConnectionString string
	SenderAddress       string
	Recipients          []string

	Delivery Delivery
}

// fileConfig models the optional config.yml.
type fileConfig struct {
	Delivery struct {
		Storage struct {
			Enabled   *bool  `yaml:"enabled"`
			Container string `yaml:"container"`
		} `yaml:"storage"`
		Email struct {
			Enabled    *bool    `yaml:"enabled"`
			Recipients []string `yaml:"recipients"`
		} `yaml:"email"`
	} `yaml:"delivery"`
}

// Load assembles Settings from the YAML file at path (CONFIG_PATH or
// ./config.yml when empty; a missing file means defaults) and the
// environment. Validation runs before any network call: every missing
// required setting is reported by name in a single error.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config.yml"
	}

	var fc fileConfig
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No file is fine, both sinks stay enabled.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		slog.Info(fmt.Sprintf("Loaded config: %s", path))
	}

	s := &Settings{
		TenantID:     os.Getenv("TENANT_ID"),
		ClientID:     os.Getenv("CLIENT_ID"),
		ClientSecret: os.Getenv("CLIENT_SECRET"),

		StorageConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		ContainerName:           os.Getenv("BLOB_CONTAINER_NAME"),

		ACSConnectionString: os.Getenv("ACS_CONNECTION_STRING"),
		SenderAddress:       os.Getenv("ACS_SENDER_EMAIL"),

		Delivery: Delivery{Storage: true, Email: true},
	}
	if fc.Delivery.Storage.Enabled != nil {
		s.Delivery.Storage = *fc.Delivery.Storage.Enabled
	}
	if fc.Delivery.Email.Enabled != nil {
		s.Delivery.Email = *fc.Delivery.Email.Enabled
	}
	if s.ContainerName == "" {
		s.ContainerName = fc.Delivery.Storage.Container
	}
	if s.ContainerName == "" {
		s.ContainerName = DefaultContainer
	}

	s.Recipients = fc.Delivery.Email.Recipients
	if len(s.Recipients) == 0 {
		if env := os.Getenv("RECIPIENT_EMAIL"); env != "" {
			for _, r := range strings.Split(env, ",") {
				if r = strings.TrimSpace(r); r != "" {
					s.Recipients = append(s.Recipients, r)
				}
			}
		}
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	var missing []string
	if s.TenantID == "" {
		missing = append(missing, "TENANT_ID")
	}
	if s.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if s.Delivery.Storage && s.StorageConnectionString == "" {
		missing = append(missing, "AZURE_STORAGE_CONNECTION_STRING")
	}
	if s.Delivery.Email {
		if s.ACSConnectionString == "" {
			missing = append(missing, "ACS_CONNECTION_STRING")
		}
		if s.SenderAddress == "" {
			missing = append(missing, "ACS_SENDER_EMAIL")
		}
		if len(s.Recipients) == 0 {
			missing = append(missing, "RECIPIENT_EMAIL")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	if !s.Delivery.Storage && !s.Delivery.Email {
		return fmt.Errorf("no delivery sink enabled")
	}
	return nil
}
