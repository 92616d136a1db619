package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureOptions selects how to authenticate against the blob service. A SAS
// token is used when an account URL is given; otherwise the connection string.
type AzureOptions struct {
	AccountURL       string
	SASToken         string
	ConnectionString string
}

// Azure is a Store backed by Azure Blob Storage.
type Azure struct {
	client *azblob.Client
}

// NewAzure builds a client from a SAS token (appended to the account URL) or
// a connection string.
func NewAzure(opts AzureOptions) (*Azure, error) {
	switch {
	case opts.SASToken != "" && opts.AccountURL != "":
		serviceURL := strings.TrimRight(opts.AccountURL, "/") + "/?" + strings.TrimPrefix(opts.SASToken, "?")
		client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating blob client for %s: %w", opts.AccountURL, err)
		}
		return &Azure{client: client}, nil
	case opts.ConnectionString != "":
		client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("creating blob client from connection string: %w", err)
		}
		return &Azure{client: client}, nil
	case opts.SASToken != "":
		return nil, errors.New("blob storage: account URL is required with a SAS token")
	default:
		return nil, errors.New("blob storage: a SAS token or connection string is required")
	}
}

// List returns the names of all blobs in container.
func (a *Azure) List(ctx context.Context, container string) ([]string, error) {
	var names []string
	pager := a.client.NewListBlobsFlatPager(container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing blobs in %s: %w", container, err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// Download returns the full content of a blob.
func (a *Azure) Download(ctx context.Context, container, name string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading %s/%s: %w", container, name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", container, name, err)
	}
	return data, nil
}

// Upload writes data to container/name, replacing any existing blob.
func (a *Azure) Upload(ctx context.Context, container, name string, data []byte) error {
	if _, err := a.client.UploadBuffer(ctx, container, name, data, nil); err != nil {
		return fmt.Errorf("uploading %s/%s: %w", container, name, err)
	}
	return nil
}
