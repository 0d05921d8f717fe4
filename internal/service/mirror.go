package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/storage"
)

// ResultMirror copies finished artifacts from the provider's result URL into
// object storage.
type ResultMirror struct {
	storage storage.ObjectStorage
	client  *resty.Client
}

// NewResultMirror creates a mirror writing to store.
// Parameters:
//   - store: destination object storage.
//   - timeout: per-download HTTP timeout; zero uses 5 minutes.
//
// Returns:
//   - *ResultMirror: initialized mirror.
func NewResultMirror(store storage.ObjectStorage, timeout time.Duration) *ResultMirror {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	client := resty.New()
	client.SetTimeout(timeout)
	return &ResultMirror{
		storage: store,
		client:  client,
	}
}

// Mirror downloads rec.ResultURL and stores it under results/<id><ext>.
// An object already present under that key is not downloaded again.
func (m *ResultMirror) Mirror(ctx context.Context, rec *domain.JobRecord) (string, error) {
	if rec.ResultURL == "" {
		return "", fmt.Errorf("job %s has no result url", rec.ID)
	}
	key := objectKey(rec)

	exists, err := m.storage.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", key, err)
	}
	if exists {
		return m.storage.GetURL(key), nil
	}

	resp, err := m.client.R().SetContext(ctx).Get(rec.ResultURL)
	if err != nil {
		return "", fmt.Errorf("failed to download result: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("failed to download result: HTTP %d", resp.StatusCode())
	}

	body := resp.Body()
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFor(key)
	}
	obj := storage.Object{
		Key:         key,
		Body:        bytes.NewReader(body),
		Size:        int64(len(body)),
		ContentType: contentType,
		Filename:    path.Base(key),
		Metadata: map[string]string{
			"job-id": rec.ID,
			"format": string(rec.Format),
		},
	}
	if err := m.storage.Upload(ctx, obj); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return m.storage.GetURL(key), nil
}

func objectKey(rec *domain.JobRecord) string {
	ext := ""
	if u, err := url.Parse(rec.ResultURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	if ext == "" {
		switch rec.Format {
		case domain.FormatProBundle:
			ext = ".zip"
		case domain.FormatGIF:
			ext = ".gif"
		case domain.FormatMP4:
			ext = ".mp4"
		}
	}
	return "results/" + rec.ID + ext
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".zip":
		return "application/zip"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
