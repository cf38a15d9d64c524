package helpers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/farellandr/hadir/internal/storage"
	"github.com/google/uuid"
)

type UploadConfig struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
	UploadBasePath   string
}

var (
	DefaultImageUploadConfig = UploadConfig{
		MaxSizeBytes: 5 * 1024 * 1024, // 5MB
		AllowedMimeTypes: []string{
			"image/jpeg",
			"image/png",
			"image/webp",
		},
		UploadBasePath: "images",
	}

	DefaultFontUploadConfig = UploadConfig{
		MaxSizeBytes: 10 * 1024 * 1024, // 10MB
		AllowedMimeTypes: []string{
			"font/ttf",
			"font/otf",
			"font/collection",
		},
		UploadBasePath: "fonts",
	}
)

func UploadFile(ctx context.Context, store storage.Store, fileHeader *multipart.FileHeader, uploadType string, configs ...UploadConfig) (string, error) {
	config := DefaultImageUploadConfig
	if len(configs) > 0 {
		config = configs[0]
	}

	if fileHeader.Size > config.MaxSizeBytes {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", config.MaxSizeBytes/(1024*1024))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	mimeType := http.DetectContentType(buffer[:n])

	mimeTypeAllowed := false
	for _, allowedType := range config.AllowedMimeTypes {
		if mimeType == allowedType {
			mimeTypeAllowed = true
			break
		}
	}
	if !mimeTypeAllowed {
		return "", fmt.Errorf("invalid file type. Allowed types: %v", config.AllowedMimeTypes)
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	key := fmt.Sprintf("%s/%s/%s%s", config.UploadBasePath, uploadType, uuid.New().String(), ext)

	return store.Put(ctx, key, src)
}

func DeleteFile(ctx context.Context, store storage.Store, ref string) error {
	return store.Delete(ctx, ref)
}
