package blob

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Client uploads rendered reports to an Azure Blob Storage container.
type Client struct {
	svc       *azblob.Client
	container string
}

// NewClient builds a storage client from a storage-account connection
// string. The container is created on first upload if it is absent.
func NewClient(connectionString, container string) (*Client, error) {
	svc, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob service client: %w", err)
	}
	return &Client{svc: svc, container: container}, nil
}

// Upload writes content under filename, replacing any existing blob
// for the same name, and returns the blob URL.
func (c *Client) Upload(ctx context.Context, filename, content string) (string, error) {
	_, err := c.svc.CreateContainer(ctx, c.container, nil)
	switch {
	case err == nil:
		slog.Info(fmt.Sprintf("Container %q created", c.container))
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		// Expected on every run after the first.
	default:
		return "", fmt.Errorf("failed to ensure container %q: %w", c.container, err)
	}

	if _, err := c.svc.UploadBuffer(ctx, c.container, filename, []byte(content), nil); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	url := c.objectURL(filename)
	slog.Info(fmt.Sprintf("Report uploaded to %s", url))
	return url, nil
}

func (c *Client) objectURL(filename string) string {
	return strings.TrimSuffix(c.svc.URL(), "/") + "/" + c.container + "/" + filename
}
