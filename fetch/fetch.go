// Package fetch retrieves road tile archives from Azure blob storage, for
// deployments where datasets are published to a container and synced down
// on startup.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

// NewAzureClient builds a blob service client. Endpoints carrying an
// account key or SAS are treated as connection strings, anything else as
// an anonymous service URL.
func NewAzureClient(endpoint string) (*azblob.Client, error) {
	if strings.Contains(endpoint, "AccountKey=") || strings.Contains(endpoint, "SharedAccessSignature=") {
		return azblob.NewClientFromConnectionString(endpoint, nil)
	}
	return azblob.NewClientWithNoCredential(endpoint, nil)
}

// FromAzure downloads one blob to destPath. The download lands in a temp
// file next to the destination and is renamed into place only once
// complete, so an interrupted download never leaves a partial archive
// behind the destination path.
func FromAzure(ctx context.Context, client *azblob.Client, container, blob, destPath string, opts ...Option) error {
	options := newOptions(opts)

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".partial-*")
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := client.DownloadFile(ctx, container, blob, tmp, nil)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("fetch: download %s/%s: %w", container, blob, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	options.logger.Info("archive fetched",
		zap.String("container", container),
		zap.String("blob", blob),
		zap.String("dest", destPath),
		zap.Int64("bytes", size))
	return nil
}
