package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Uploader pushes artifacts to the Catbox Litterbox anonymous file host. The
// host answers with a bare download URL on success and an arbitrary error
// string otherwise; anything that is not a URL is a failure.
type Uploader struct {
	client *resty.Client
	apiURL string
	logger *zap.Logger
}

// NewUploader builds an Uploader against the given API endpoint.
func NewUploader(apiURL string, logger *zap.Logger) *Uploader {
	return &Uploader{
		client: resty.New().SetTimeout(60 * time.Second),
		apiURL: apiURL,
		logger: logger,
	}
}

// Upload sends the file at path with the requested expiry class and returns
// the download URL.
func (u *Uploader) Upload(ctx context.Context, path, expiry string) (string, error) {
	res, err := u.client.R().
		SetContext(ctx).
		SetFile("fileToUpload", path).
		SetFormData(map[string]string{
			"reqtype": "fileupload",
			"time":    expiry,
		}).
		Post(u.apiURL)
	if err != nil {
		return "", fmt.Errorf("upload to %s: %w", u.apiURL, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("upload to %s: unexpected status %d", u.apiURL, res.StatusCode())
	}

	body := strings.TrimSpace(res.String())
	if !strings.HasPrefix(body, "http://") && !strings.HasPrefix(body, "https://") {
		return "", fmt.Errorf("upload rejected by host: %s", body)
	}
	u.logger.Info("Backup uploaded", zap.String("url", body), zap.String("expiry", expiry))
	return body, nil
}
