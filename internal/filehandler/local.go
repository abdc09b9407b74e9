package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadLocalImage reads a screenshot from disk for the CLI and MCP surfaces.
// The MIME type comes from the extension and the same upload rules apply.
func LoadLocalImage(path string) (*Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := SupportedImageExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}
	if err := Validate(info.Size(), mimeType); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	img := &Image{
		Filename: filepath.Base(path),
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
