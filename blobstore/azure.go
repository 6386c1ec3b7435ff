package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sagarc03/sitehost"
)

// AzureConfig configures an Azure Blob Storage container. Either a
// connection string or an account name and key is required.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	ServiceURL       string `mapstructure:"service_url"` // Defaults to https://{account}.blob.core.windows.net
	Prefix           string `mapstructure:"prefix"`
}

// AzureStore keeps blobs in an Azure container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.Container == "" {
		return nil, errors.New("new azure store: container is required")
	}

	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("new azure store: %w", err)
	}

	return &AzureStore{client: client, container: cfg.Container, prefix: normalizePrefix(cfg.Prefix)}, nil
}

func newAzureClient(cfg AzureConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}

	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.New("account name and key or a connection string is required")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}

	return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
}

// Put streams content as a block blob. Without Overwrite the upload
// carries If-None-Match: *.
func (s *AzureStore) Put(ctx context.Context, key string, content io.Reader, opts sitehost.PutOptions) (sitehost.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return sitehost.SaveResult{}, err
	}

	blobName, err := objectKey(s.prefix, key)
	if err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("azure put: %w", err)
	}

	uploadOpts := &azblob.UploadStreamOptions{}
	if !opts.Overwrite {
		uploadOpts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		}
	}

	dr := newDigestReader(ctx, content)
	if _, err := s.client.UploadStream(ctx, s.container, blobName, dr, uploadOpts); err != nil {
		if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
			return sitehost.SaveResult{}, fmt.Errorf("azure put %s: %w", key, sitehost.ErrBlobExists)
		}
		return sitehost.SaveResult{}, fmt.Errorf("azure put %s: %w", key, err)
	}

	return dr.result(), nil
}

func (s *AzureStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	blobName, err := objectKey(s.prefix, key)
	if err != nil {
		return nil, fmt.Errorf("azure get: %w", err)
	}

	resp, err := s.client.DownloadStream(ctx, s.container, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, sitehost.ErrNotFound
		}
		return nil, fmt.Errorf("azure get %s: %w", key, err)
	}

	return resp.Body, nil
}

func (s *AzureStore) Delete(ctx context.Context, key string) error {
	blobName, err := objectKey(s.prefix, key)
	if err != nil {
		return fmt.Errorf("azure delete: %w", err)
	}

	if _, err := s.client.DeleteBlob(ctx, s.container, blobName, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("azure delete %s: %w", key, err)
	}

	return nil
}

// DeleteVersion removes key only if its ETag still matches the listed one.
func (s *AzureStore) DeleteVersion(ctx context.Context, key, version string) error {
	blobName, err := objectKey(s.prefix, key)
	if err != nil {
		return fmt.Errorf("azure delete: %w", err)
	}

	if version == "" {
		return fmt.Errorf("azure delete %s: %w: empty version", key, sitehost.ErrInvalidInput)
	}

	deleteOpts := &azblob.DeleteBlobOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfMatch: to.Ptr(azcore.ETag(version))},
		},
	}
	if _, err := s.client.DeleteBlob(ctx, s.container, blobName, deleteOpts); err != nil {
		switch {
		case bloberror.HasCode(err, bloberror.BlobNotFound):
			return sitehost.ErrNotFound
		case bloberror.HasCode(err, bloberror.ConditionNotMet):
			return fmt.Errorf("azure delete %s: %w", key, sitehost.ErrBlobChanged)
		}
		return fmt.Errorf("azure delete %s: %w", key, err)
	}

	return nil
}

func (s *AzureStore) List(ctx context.Context) ([]sitehost.BlobEntry, error) {
	entries := []sitehost.BlobEntry{}

	listOpts := &azblob.ListBlobsFlatOptions{}
	if s.prefix != "" {
		listOpts.Prefix = to.Ptr(s.prefix)
	}

	pager := s.client.NewListBlobsFlatPager(s.container, listOpts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure list: %w", err)
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			entry := sitehost.BlobEntry{Key: strings.TrimPrefix(*item.Name, s.prefix)}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					entry.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					entry.ModTime = *props.LastModified
				}
				if props.ETag != nil {
					entry.Version = string(*props.ETag)
				}
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Close is a no-op; the Azure client holds no resources.
func (s *AzureStore) Close() error {
	return nil
}
