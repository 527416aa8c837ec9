package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"azure-cost-report/domain/costreport"
)

// Client talks to the Azure management and Cost Management APIs on
// behalf of a service principal. A Client is built per run; the token
// it acquires lives for that run only.
type Client struct {
	tenantID     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	token        *oauth2.Token

	// Overridable endpoints, pointed at test servers in unit tests.
	loginURL      string
	managementURL string
}

// NewClient creates a management API client for the given service
// principal credentials.
func NewClient(tenantID, clientID, clientSecret string) *Client {
	return &Client{
		tenantID:      tenantID,
		clientID:      clientID,
		clientSecret:  clientSecret,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		loginURL:      "https://login.microsoftonline.com",
		managementURL: "https://management.azure.com",
	}
}

// Authenticate obtains a bearer token from Azure AD using the OAuth2
// client-credentials grant.
func (c *Client) Authenticate(ctx context.Context) error {
	cfg := &clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginURL, c.tenantID),
		Scopes:       []string{c.managementURL + "/.default"},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire management token: %w", err)
	}
	c.token = token
	slog.Info("Access token acquired")
	return nil
}

type subscriptionList struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		DisplayName    string `json:"displayName"`
	} `json:"value"`
}

// ListAccounts fetches every subscription visible to the service
// principal. An empty result is not an error; the caller decides what
// an empty tenant means.
func (c *Client) ListAccounts(ctx context.Context) ([]costreport.Account, error) {
	if c.token == nil {
		return nil, fmt.Errorf("client is not authenticated")
	}
	url := c.managementURL + "/subscriptions?api-version=2020-01-01"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions request: %w", err)
	}
	c.token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("subscription fetch failed: %d %s", resp.StatusCode, string(body))
	}

	var list subscriptionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions response: %w", err)
	}

	accounts := make([]costreport.Account, 0, len(list.Value))
	for _, s := range list.Value {
		name := s.DisplayName
		if name == "" {
			name = "Unknown"
		}
		accounts = append(accounts, costreport.Account{ID: s.SubscriptionID, Name: name})
	}
	slog.Info(fmt.Sprintf("Found %d subscriptions", len(accounts)))
	return accounts, nil
}

// costQueryRequest is the request body for the Cost Management query API.
type costQueryRequest struct {
	Type       string         `json:"type"`
	Timeframe  string         `json:"timeframe"`
	TimePeriod timePeriod     `json:"timePeriod"`
	Dataset    datasetRequest `json:"dataset"`
}

type timePeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type datasetRequest struct {
	Granularity string            `json:"granularity"`
	Aggregation map[string]aggDef `json:"aggregation"`
}

type aggDef struct {
	Name     string `json:"name"`
	Function string `json:"function"`
}

type costQueryResponse struct {
	Properties struct {
		Rows [][]any `json:"rows"`
	} `json:"properties"`
}

// FetchCost retrieves the aggregate cost for one subscription over the
// window. It never returns an error: any transport failure, non-200
// response, or empty result yields a zero-cost row with HadData=false.
// A complete report with a few zeroed rows beats a failed run.
func (c *Client) FetchCost(ctx context.Context, account costreport.Account, w costreport.Window) costreport.AccountCost {
	result := costreport.AccountCost{Account: account}
	if c.token == nil {
		slog.Warn(fmt.Sprintf("Cost query for %s skipped: client is not authenticated", account.ID))
		return result
	}

	body := costQueryRequest{
		Type:      "ActualCost",
		Timeframe: "Custom",
		TimePeriod: timePeriod{
			From: w.StartDate(),
			To:   w.EndDate(),
		},
		Dataset: datasetRequest{
			Granularity: "None",
			Aggregation: map[string]aggDef{
				"totalCost": {Name: "Cost", Function: "Sum"},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		slog.Warn(fmt.Sprintf("Failed to marshal cost query for %s: %v", account.ID, err))
		return result
	}

	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.CostManagement/query?api-version=2023-03-01",
		c.managementURL, account.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		slog.Warn(fmt.Sprintf("Failed to create cost query for %s: %v", account.ID, err))
		return result
	}
	c.token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn(fmt.Sprintf("Cost query failed for %s: %v", account.ID, err))
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		slog.Warn(fmt.Sprintf("Cost query for %s returned %d: %s", account.ID, resp.StatusCode, string(raw)))
		return result
	}

	var query costQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		slog.Warn(fmt.Sprintf("Failed to decode cost response for %s: %v", account.ID, err))
		return result
	}

	rows := query.Properties.Rows
	if len(rows) == 0 || len(rows[0]) == 0 {
		slog.Info(fmt.Sprintf("No cost rows for %s", account.ID))
		return result
	}
	cost, ok := rows[0][0].(float64)
	if !ok {
		slog.Warn(fmt.Sprintf("Unexpected cost cell type for %s: %T", account.ID, rows[0][0]))
		return result
	}

	result.TotalCost = cost
	result.HadData = true
	return result
}
