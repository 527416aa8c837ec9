package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	lo "github.com/samber/lo"

	"azure-cost-report/connectors/acs"
	"azure-cost-report/domain/costreport"
)

// CostSource is the management API surface a run needs: one token, one
// account enumeration, one cost query per account. FetchCost must not
// fail; a broken fetch comes back as a zero-cost row with HadData
// unset.
type CostSource interface {
	Authenticate(ctx context.Context) error
	ListAccounts(ctx context.Context) ([]costreport.Account, error)
	FetchCost(ctx context.Context, account costreport.Account, w costreport.Window) costreport.AccountCost
}

// StorageSink uploads a rendered report and returns its URL.
type StorageSink interface {
	Upload(ctx context.Context, filename, content string) (string, error)
}

// EmailSink delivers the report by mail.
type EmailSink interface {
	Send(ctx context.Context, m acs.Message) (acs.SendResult, error)
}

// Runner executes one report run end to end. Storage and Email are nil
// when the corresponding capability is disabled.
type Runner struct {
	Source  CostSource
	Storage StorageSink
	Email   EmailSink

	Sender     string
	Recipients []string

	// Now is stubbed in tests; defaults to time.Now.
	Now func() time.Time
}

// Outcome is the JSON envelope plus the HTTP status it maps to.
type Outcome struct {
	Code int `json:"-"`

	Status             string   `json:"status,omitempty"`
	Message            string   `json:"message,omitempty"`
	ReportPeriod       string   `json:"report_period,omitempty"`
	TotalSubscriptions *int     `json:"total_subscriptions,omitempty"`
	TotalCost          *float64 `json:"total_cost,omitempty"`
	Filename           string   `json:"filename,omitempty"`
	BlobURL            string   `json:"blob_url,omitempty"`
	EmailSent          *bool    `json:"email_sent,omitempty"`

	Error     string `json:"error,omitempty"`
	Type      string `json:"type,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Failure shapes a classified error into a 500 envelope with a full
// diagnostic trace.
func Failure(kind Kind, err error) Outcome {
	classified := classify(kind, err)
	slog.Error(fmt.Sprintf("Run failed: %v", classified))
	return Outcome{
		Code:      http.StatusInternalServerError,
		Error:     err.Error(),
		Type:      string(kind),
		Traceback: string(debug.Stack()),
	}
}

// Run sequences one report: token, window, accounts, per-account cost,
// render, delivery. Individual cost fetches cannot fail the run; a
// delivery failure surfaces as an error but keeps whatever already
// landed (an uploaded blob stays uploaded and its URL is reported).
func (r *Runner) Run(ctx context.Context) Outcome {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	if err := r.Source.Authenticate(ctx); err != nil {
		return Failure(KindAuthentication, err)
	}

	window := costreport.PreviousMonthRange(now())
	slog.Info(fmt.Sprintf("Report window: %s", window))

	accounts, err := r.Source.ListAccounts(ctx)
	if err != nil {
		return Failure(KindUpstreamAPI, err)
	}
	if len(accounts) == 0 {
		slog.Warn("No subscriptions found")
		return Outcome{
			Code:    http.StatusNotFound,
			Error:   "No subscriptions found",
			Message: "The service principal has no access to any subscriptions",
		}
	}

	results := lo.Map(accounts, func(a costreport.Account, i int) costreport.AccountCost {
		slog.Info(fmt.Sprintf("[%d/%d] Fetching cost for %s", i+1, len(accounts), a.Name))
		return r.Source.FetchCost(ctx, a, window)
	})

	rep := costreport.Build(results, window, now())
	content, err := rep.CSV()
	if err != nil {
		return Failure(KindRender, err)
	}
	filename := rep.Filename()
	slog.Info(fmt.Sprintf("Report rendered: %s (%d subscriptions, total %s)",
		filename, len(rep.Rows), rep.GrandTotal.StringFixed(2)))

	var blobURL string
	if r.Storage != nil {
		blobURL, err = r.Storage.Upload(ctx, filename, content)
		if err != nil {
			return Failure(KindDelivery, fmt.Errorf("blob upload failed: %w", err))
		}
	}

	emailSent := false
	if r.Email != nil {
		msg := composeMessage(r.Sender, r.Recipients, rep, filename, content, blobURL)
		if _, err := r.Email.Send(ctx, msg); err != nil {
			out := Failure(KindDelivery, fmt.Errorf("email send failed: %w", err))
			// The upload already happened; keep the URL visible.
			out.BlobURL = blobURL
			return out
		}
		emailSent = true
	}

	count := len(rep.Rows)
	total := rep.GrandTotal.InexactFloat64()
	return Outcome{
		Code:               http.StatusOK,
		Status:             "success",
		Message:            successMessage(blobURL != "", emailSent),
		ReportPeriod:       window.String(),
		TotalSubscriptions: &count,
		TotalCost:          &total,
		Filename:           filename,
		BlobURL:            blobURL,
		EmailSent:          &emailSent,
	}
}

func successMessage(uploaded, emailed bool) string {
	switch {
	case uploaded && emailed:
		return "Cost report CSV uploaded to Blob Storage and email notification sent"
	case uploaded:
		return "Cost report CSV uploaded to Blob Storage"
	default:
		return "Cost report sent by email"
	}
}
