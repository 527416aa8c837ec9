package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-cost-report/connectors/acs"
	"azure-cost-report/domain/costreport"
)

type fakeSource struct {
	authErr  error
	listErr  error
	accounts []costreport.Account
	costs    map[string]costreport.AccountCost

	fetchCalls int
}

func (f *fakeSource) Authenticate(context.Context) error { return f.authErr }

func (f *fakeSource) ListAccounts(context.Context) ([]costreport.Account, error) {
	return f.accounts, f.listErr
}

func (f *fakeSource) FetchCost(_ context.Context, a costreport.Account, _ costreport.Window) costreport.AccountCost {
	f.fetchCalls++
	if c, ok := f.costs[a.ID]; ok {
		return c
	}
	return costreport.AccountCost{Account: a}
}

type fakeStorage struct {
	err     error
	uploads map[string]string
	url     string
}

func (f *fakeStorage) Upload(_ context.Context, filename, content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[filename] = content
	return f.url + "/" + filename, nil
}

type fakeEmail struct {
	err  error
	sent []acs.Message
}

func (f *fakeEmail) Send(_ context.Context, m acs.Message) (acs.SendResult, error) {
	if f.err != nil {
		return acs.SendResult{}, f.err
	}
	f.sent = append(f.sent, m)
	return acs.SendResult{ID: "op-1", Status: "Running"}, nil
}

func fixedNow() time.Time {
	return time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)
}

func newRunner(src *fakeSource, storage *fakeStorage, email *fakeEmail) *Runner {
	r := &Runner{
		Source:     src,
		Sender:     "DoNotReply@example.com",
		Recipients: []string{"billing@example.com"},
		Now:        fixedNow,
	}
	// Typed nils must not sneak in as non-nil interfaces.
	if storage != nil {
		r.Storage = storage
	}
	if email != nil {
		r.Email = email
	}
	return r
}

func twoAccounts() *fakeSource {
	return &fakeSource{
		accounts: []costreport.Account{
			{ID: "id1", Name: "Sub A"},
			{ID: "id2", Name: "Sub B"},
		},
		costs: map[string]costreport.AccountCost{
			"id1": {Account: costreport.Account{ID: "id1", Name: "Sub A"}, TotalCost: 125.555, HadData: true},
			"id2": {Account: costreport.Account{ID: "id2", Name: "Sub B"}, TotalCost: 10, HadData: true},
		},
	}
}

func TestRunSuccessBothSinks(t *testing.T) {
	src := twoAccounts()
	storage := &fakeStorage{url: "https://acct.blob.core.windows.net/azure-cost-reports"}
	email := &fakeEmail{}

	out := newRunner(src, storage, email).Run(context.Background())

	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "Cost report CSV uploaded to Blob Storage and email notification sent", out.Message)
	assert.Equal(t, "2024-05-01 to 2024-05-31", out.ReportPeriod)
	require.NotNil(t, out.TotalSubscriptions)
	assert.Equal(t, 2, *out.TotalSubscriptions)
	require.NotNil(t, out.TotalCost)
	assert.InDelta(t, 135.56, *out.TotalCost, 1e-9)
	assert.Equal(t, "azure_cost_report_2024-05-01_to_2024-05-31.csv", out.Filename)
	assert.Equal(t, storage.url+"/"+out.Filename, out.BlobURL)
	require.NotNil(t, out.EmailSent)
	assert.True(t, *out.EmailSent)

	// Uploaded content is the rendered CSV.
	content := storage.uploads[out.Filename]
	assert.Contains(t, content, "Sub A,id1,2024-05-01,2024-05-31,125.56,Active\n")
	assert.Contains(t, content, "TOTAL,,,,135.56,\n")

	// The mail carries the same CSV as attachment plus the blob link.
	require.Len(t, email.sent, 1)
	msg := email.sent[0]
	assert.Equal(t, "Azure Cost Report: 2024-05-01 to 2024-05-31", msg.Subject)
	assert.Equal(t, []string{"billing@example.com"}, msg.Recipients)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, out.Filename, msg.Attachment.Name)
	assert.Equal(t, content, string(msg.Attachment.Content))
	assert.Contains(t, msg.PlainText, out.BlobURL)
	assert.Contains(t, msg.HTML, out.BlobURL)
	assert.Contains(t, msg.PlainText, "Total Cost: $135.56 USD")
}

func TestRunEmailOnly(t *testing.T) {
	src := twoAccounts()
	email := &fakeEmail{}

	out := newRunner(src, nil, email).Run(context.Background())

	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "Cost report sent by email", out.Message)
	assert.Empty(t, out.BlobURL)
	require.Len(t, email.sent, 1)
	assert.NotContains(t, email.sent[0].PlainText, "Download Report")
}

func TestRunStorageOnly(t *testing.T) {
	src := twoAccounts()
	storage := &fakeStorage{url: "https://acct.blob.core.windows.net/azure-cost-reports"}

	out := newRunner(src, storage, nil).Run(context.Background())

	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "Cost report CSV uploaded to Blob Storage", out.Message)
	require.NotNil(t, out.EmailSent)
	assert.False(t, *out.EmailSent)
}

func TestRunNoAccountsShortCircuits(t *testing.T) {
	src := &fakeSource{}
	storage := &fakeStorage{}
	email := &fakeEmail{}

	out := newRunner(src, storage, email).Run(context.Background())

	assert.Equal(t, http.StatusNotFound, out.Code)
	assert.Equal(t, "No subscriptions found", out.Error)
	assert.Zero(t, src.fetchCalls)
	assert.Empty(t, storage.uploads)
	assert.Empty(t, email.sent)
}

func TestRunAuthenticationFailure(t *testing.T) {
	src := &fakeSource{authErr: errors.New("invalid_client")}

	out := newRunner(src, &fakeStorage{}, &fakeEmail{}).Run(context.Background())

	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Equal(t, string(KindAuthentication), out.Type)
	assert.Contains(t, out.Error, "invalid_client")
	assert.NotEmpty(t, out.Traceback)
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	src := &fakeSource{listErr: fmt.Errorf("subscription fetch failed: 500")}

	out := newRunner(src, &fakeStorage{}, &fakeEmail{}).Run(context.Background())

	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Equal(t, string(KindUpstreamAPI), out.Type)
}

func TestRunAbsorbsPerAccountFetchFailures(t *testing.T) {
	// id2 has no entry in costs: the fake returns a zeroed no-data row,
	// exactly what the real connector degrades to. The run still
	// succeeds and the row shows up as "No usage data".
	src := twoAccounts()
	delete(src.costs, "id2")
	storage := &fakeStorage{url: "https://acct.blob.core.windows.net/azure-cost-reports"}

	out := newRunner(src, storage, nil).Run(context.Background())

	require.Equal(t, http.StatusOK, out.Code)
	require.NotNil(t, out.TotalCost)
	assert.InDelta(t, 125.56, *out.TotalCost, 1e-9)
	assert.Contains(t, storage.uploads[out.Filename], "Sub B,id2,2024-05-01,2024-05-31,0.00,No usage data\n")
}

func TestRunStorageFailure(t *testing.T) {
	src := twoAccounts()
	storage := &fakeStorage{err: errors.New("403 forbidden")}
	email := &fakeEmail{}

	out := newRunner(src, storage, email).Run(context.Background())

	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Equal(t, string(KindDelivery), out.Type)
	assert.Contains(t, out.Error, "blob upload failed")
	assert.Empty(t, email.sent)
}

func TestRunEmailFailureKeepsUploadedBlob(t *testing.T) {
	src := twoAccounts()
	storage := &fakeStorage{url: "https://acct.blob.core.windows.net/azure-cost-reports"}
	email := &fakeEmail{err: errors.New("mailbox on fire")}

	out := newRunner(src, storage, email).Run(context.Background())

	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Equal(t, string(KindDelivery), out.Type)
	// The upload happened before the send failed; its URL survives.
	assert.NotEmpty(t, out.BlobURL)
	assert.Len(t, storage.uploads, 1)
}

func TestKindOf(t *testing.T) {
	err := classify(KindConfiguration, errors.New("missing environment variables: TENANT_ID"))
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, KindConfiguration, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
}
