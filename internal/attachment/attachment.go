// Package attachment converts image files to data URLs and back into the
// MIME type and payload pair the generation service expects.
package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultMIMEType is used when a data URL header cannot be parsed.
const DefaultMIMEType = "image/png"

// maxConcurrentReads bounds parallel file conversions.
const maxConcurrentReads = 4

var headerMIME = regexp.MustCompile(`:(.*?);`)

// Split separates a data URL into its MIME type and raw base64 payload.
// It never fails: an unparsable header yields DefaultMIMEType, and a string
// without a comma is treated as a bare payload.
func Split(dataURL string) (mimeType, payload string) {
	header, data, ok := strings.Cut(dataURL, ",")
	if !ok {
		return DefaultMIMEType, dataURL
	}
	mimeType = DefaultMIMEType
	if m := headerMIME.FindStringSubmatch(header); m != nil && m[1] != "" {
		mimeType = m[1]
	}
	return mimeType, data
}

// Encode builds a base64 data URL from raw bytes.
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodeFile reads path and returns it as a data URL. The MIME type comes
// from the extension, else it is sniffed from the content.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Encode(detectMIME(path, data), data), nil
}

func detectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if mt == "" {
		return DefaultMIMEType
	}
	return mt
}

var encodeFile = EncodeFile

// ReadFiles converts every path concurrently. Results are appended as each
// conversion completes, so their order is not guaranteed to match paths.
// A failed file does not stop the others; all failures are joined into the
// returned error alongside the successful results.
func ReadFiles(ctx context.Context, paths []string) ([]string, error) {
	var (
		mu     sync.Mutex
		images []string
		errs   []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			url, err := encodeFile(p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			images = append(images, url)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return images, errors.Join(errs...)
}
