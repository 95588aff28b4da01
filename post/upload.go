package post

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	zipkinhttp "github.com/openzipkin/zipkin-go/middleware/http"
	"github.com/pictura/pictura/model"
)

// Uploader sends image bytes to the blob hosting service and
// returns the public URL
type Uploader interface {
	Upload(ctx context.Context, name string, fileType string, data []byte) (string, error)
}

// BlobUploader talks to the blob service over HTTP with the
// zipkin traced client
type BlobUploader struct {
	Client *zipkinhttp.Client
}

// Upload transfers the image. If no response in 20 seconds,
// cancel it
func (u *BlobUploader) Upload(ctx context.Context, name string, fileType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*20)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		os.Getenv("BLOB_ADDRESS")+"/upload/"+name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unable to create request: %w", model.ErrNetwork)
	}
	req.Header.Set("Content-Type", fileType)

	response, err := u.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to make request: %w", model.ErrNetwork)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("unable to read request: %w", model.ErrNetwork)
	}

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("blob service said %d: %w", response.StatusCode, model.ErrNetwork)
	}

	return string(body), nil
}
