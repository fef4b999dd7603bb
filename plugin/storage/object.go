package storage

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/viant/afs"
)

// ObjectFetcher downloads stored objects and inlines them as data URLs.
// The afs service resolves the locator scheme (file, s3, gs, http, mem).
type ObjectFetcher struct {
	fs afs.Service
}

func NewObjectFetcher() *ObjectFetcher {
	return &ObjectFetcher{fs: afs.New()}
}

// FetchAsDataURL downloads the object at the given locator and returns it as
// a base64 data URL with the supplied MIME type.
func (f *ObjectFetcher) FetchAsDataURL(ctx context.Context, locator, mimeType string) (string, error) {
	data, err := f.fs.DownloadWithURL(ctx, locator)
	if err != nil {
		return "", fmt.Errorf("failed to download object %s: %w", locator, err)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
