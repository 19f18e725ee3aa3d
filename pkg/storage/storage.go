// Package storage provides blob storage for the lookup snapshot and the audit
// CSV, with an Azure Blob Storage implementation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrEmptyKey indicates an empty storage key was provided.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrInvalidKey indicates the storage key contains a path traversal segment.
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
	// ErrNotConfigured is returned when no connection string is available.
	ErrNotConfigured = errors.New("blob storage is not configured")
)

// BlobStore reads and writes whole blobs in one container.
type BlobStore interface {
	// Upload streams data to a blob at the given key with the specified content type.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the blob at the given key. The caller must close the reader.
	// Returns ErrNotFound if the blob does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Container names the container the store is bound to.
	Container() string
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *logrus.Logger
}

// NewAzureStore creates a store bound to container. It validates the
// connection string but makes no request until first use.
func NewAzureStore(connectionString, container string, logger *logrus.Logger) (BlobStore, error) {
	if connectionString == "" {
		return nil, ErrNotConfigured
	}
	if container == "" {
		return nil, fmt.Errorf("blob container is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &azure{client: client, container: container, logger: logger}, nil
}

func (a *azure) Container() string { return a.container }

// EnsureContainer creates the container when it does not exist.
func EnsureContainer(ctx context.Context, store BlobStore) error {
	az, ok := store.(*azure)
	if !ok {
		return nil
	}
	_, err := az.client.CreateContainer(ctx, az.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", az.container, err)
	}
	az.logger.WithField("container", az.container).Info("Storage container ready")
	return nil
}

func (a *azure) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	if _, err := a.client.UploadStream(ctx, a.container, key, reader, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	return nil
}

func (a *azure) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	return resp.Body, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
