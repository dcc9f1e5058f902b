// Package media uploads images to the third-party host used for message
// images and post covers. Uploads are unsigned: the account only accepts
// files tagged with the configured upload preset.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubiojr/quill/pkg/log"
	"github.com/rubiojr/quill/pkg/version"
)

var ErrNotConfigured = errors.New("media: upload preset not configured")

const defaultUploadURL = "https://api.cloudinary.com/v1_1/%s/image/upload"

type Config struct {
	CloudName    string
	UploadPreset string
	// UploadURL overrides the endpoint derived from CloudName.
	UploadURL string
}

type Uploader struct {
	endpoint string
	preset   string
	http     *http.Client
	log      *log.Logger
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewUploader(cfg Config, client *http.Client) (*Uploader, error) {
	if cfg.UploadPreset == "" {
		return nil, ErrNotConfigured
	}
	endpoint := cfg.UploadURL
	if endpoint == "" {
		if cfg.CloudName == "" {
			return nil, ErrNotConfigured
		}
		endpoint = fmt.Sprintf(defaultUploadURL, cfg.CloudName)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Uploader{
		endpoint: endpoint,
		preset:   cfg.UploadPreset,
		http:     client,
		log:      log.ForService("media"),
	}, nil
}

// UploadFile uploads the file at path and returns its HTTPS URL.
func (u *Uploader) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return u.Upload(ctx, filepath.Base(path), f)
}

// Upload sends r as a multipart form together with the upload preset.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.WriteField("upload_preset", u.preset); err != nil {
		return "", fmt.Errorf("writing preset field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent())

	u.log.Debugf("uploading %s (%d bytes)", filename, body.Len())
	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", filename, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upload response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("upload rejected: %s", msg)
	}
	if !strings.HasPrefix(out.SecureURL, "https://") {
		return "", fmt.Errorf("upload returned non-https url %q", out.SecureURL)
	}
	return out.SecureURL, nil
}
