// =============================
// File: internal/pumpfun/metadata.go
// =============================
package pumpfun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// MetadataUploader pushes token metadata (image + descriptive fields) to the
// off-chain content store and returns the resulting URI for the create
// instruction. The store itself is external; this is a thin HTTP boundary.
type MetadataUploader struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewMetadataUploader(endpoint string, logger *zap.Logger) *MetadataUploader {
	return &MetadataUploader{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.Named("metadata"),
	}
}

type metadataResponse struct {
	MetadataURI string `json:"metadataUri"`
}

// Upload posts the metadata as multipart form data and returns the metadata
// URI. Every field the store recognizes is sent; empty social links are
// omitted.
func (u *MetadataUploader) Upload(ctx context.Context, meta TokenMetadata) (string, error) {
	if meta.Name == "" || meta.Symbol == "" {
		return "", fmt.Errorf("metadata upload requires name and symbol, got name=%q symbol=%q", meta.Name, meta.Symbol)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if meta.ImagePath != "" {
		if err := attachImage(writer, meta.ImagePath); err != nil {
			return "", err
		}
	}

	fields := map[string]string{
		"name":        meta.Name,
		"symbol":      meta.Symbol,
		"description": meta.Description,
		"twitter":     meta.Twitter,
		"telegram":    meta.Telegram,
		"website":     meta.Website,
		"showName":    "true",
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return "", fmt.Errorf("failed to write metadata field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize metadata form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("metadata store returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if parsed.MetadataURI == "" {
		return "", fmt.Errorf("metadata store returned empty metadataUri")
	}

	u.logger.Info("Metadata uploaded",
		zap.String("name", meta.Name),
		zap.String("symbol", meta.Symbol),
		zap.String("uri", parsed.MetadataURI))

	return parsed.MetadataURI, nil
}

func attachImage(writer *multipart.Writer, imagePath string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open token image %s: %w", imagePath, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return fmt.Errorf("failed to create image form part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy image data: %w", err)
	}
	return nil
}
