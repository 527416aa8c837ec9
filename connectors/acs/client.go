package acs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const apiVersion = "2023-03-31"

// Client sends email through the Azure Communication Services REST
// API. There is no official Go SDK for ACS email, so requests are
// signed by hand with the HMAC-SHA256 scheme the service requires.
type Client struct {
	endpoint   *url.URL
	accessKey  []byte
	httpClient *http.Client

	// now is stubbed in tests to make signatures reproducible.
	now func() time.Time
}

// NewClient parses an ACS connection string of the form
// "endpoint=https://...;accesskey=base64key".
func NewClient(connectionString string) (*Client, error) {
	var endpoint, key string
	for _, part := range strings.Split(connectionString, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(name) {
		case "endpoint":
			endpoint = value
		case "accesskey":
			key = value
		}
	}
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("connection string must contain endpoint and accesskey")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ACS endpoint: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("invalid ACS access key: %w", err)
	}

	return &Client{
		endpoint:   u,
		accessKey:  decoded,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}, nil
}

// Attachment is a file attached to an outgoing mail.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is one outgoing mail.
type Message struct {
	Sender     string
	Recipients []string
	Subject    string
	PlainText  string
	HTML       string
	Attachment *Attachment
}

// SendResult is the service's confirmation for an accepted send.
type SendResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type emailRequest struct {
	SenderAddress string `json:"senderAddress"`
	Recipients    struct {
		To []emailAddress `json:"to"`
	} `json:"recipients"`
	Content struct {
		Subject   string `json:"subject"`
		PlainText string `json:"plainText"`
		HTML      string `json:"html"`
	} `json:"content"`
	Attachments []emailAttachment `json:"attachments,omitempty"`
}

type emailAttachment struct {
	Name            string `json:"name"`
	ContentType     string `json:"contentType"`
	ContentInBase64 string `json:"contentInBase64"`
}

// Send submits the message and returns the operation id and status
// reported by the service.
func (c *Client) Send(ctx context.Context, m Message) (SendResult, error) {
	var req emailRequest
	req.SenderAddress = m.Sender
	for _, r := range m.Recipients {
		req.Recipients.To = append(req.Recipients.To, emailAddress{Address: r})
	}
	req.Content.Subject = m.Subject
	req.Content.PlainText = m.PlainText
	req.Content.HTML = m.HTML
	if m.Attachment != nil {
		req.Attachments = []emailAttachment{{
			Name:            m.Attachment.Name,
			ContentType:     m.Attachment.ContentType,
			ContentInBase64: base64.StdEncoding.EncodeToString(m.Attachment.Content),
		}}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to marshal email request: %w", err)
	}

	pathAndQuery := "/emails:send?api-version=" + apiVersion
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint.Scheme+"://"+c.endpoint.Host+pathAndQuery, bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create email request: %w", err)
	}

	now := c.now().UTC()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Repeatability-Request-ID", uuid.NewString())
	httpReq.Header.Set("Repeatability-First-Sent", now.Format(http.TimeFormat))
	c.sign(httpReq, payload, now)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to read email response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return SendResult{}, fmt.Errorf("email send failed: %d %s", resp.StatusCode, string(body))
	}

	var result SendResult
	if err := json.Unmarshal(body, &result); err != nil {
		return SendResult{}, fmt.Errorf("failed to decode email response: %w", err)
	}
	slog.Info(fmt.Sprintf("Email accepted: id=%s status=%s", result.ID, result.Status))
	return result, nil
}

// sign applies the ACS shared-key scheme: the signed string is the
// verb, the path+query, and "date;host;body-sha256" joined with
// newlines, HMAC-SHA256 over the decoded access key.
func (c *Client) sign(req *http.Request, body []byte, now time.Time) {
	date := now.Format(http.TimeFormat)
	bodyHash := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(bodyHash[:])

	stringToSign := strings.Join([]string{
		req.Method,
		req.URL.RequestURI(),
		date + ";" + req.URL.Host + ";" + contentHash,
	}, "\n")

	mac := hmac.New(sha256.New, c.accessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHash)
	req.Header.Set("Authorization",
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}
