package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder for image.DecodeConfig
	_ "image/png"  // register PNG decoder for image.DecodeConfig
	"regexp"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// MaxUploadSize is the largest screenshot accepted for analysis (1 MiB).
const MaxUploadSize int64 = 1 * 1024 * 1024

// allowedMIMEType is the upload allow-list. image/jpg is not a registered
// type but browsers and tools still send it.
var allowedMIMEType = regexp.MustCompile(`^image/(jpg|jpeg|png)$`)

// SupportedImageExtensions maps local file extensions to the MIME type sent
// to the model when the type is not declared (CLI and MCP paths).
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var (
	// ErrTooLarge means the image exceeds MaxUploadSize.
	ErrTooLarge = errors.New("file exceeds the 1 MiB limit")
	// ErrUnsupportedType means the declared type is outside the allow-list
	// or the bytes are not a PNG/JPEG image.
	ErrUnsupportedType = errors.New("only jpg, jpeg and png images are accepted")
	// ErrEmpty means no image bytes were provided.
	ErrEmpty = errors.New("file is empty")
)

// Image is an uploaded screenshot. It lives for one request.
type Image struct {
	Filename string
	MIMEType string
	Size     int64
	Data     []byte
}

// Validate applies the upload rules in order: size first, then declared
// MIME type. The first failure wins.
func Validate(size int64, mimeType string) error {
	if size > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	if !allowedMIMEType.MatchString(NormalizeMIMEType(mimeType)) {
		return fmt.Errorf("%w: got %q", ErrUnsupportedType, mimeType)
	}
	return nil
}

// NormalizeMIMEType lowercases a Content-Type value and drops parameters.
func NormalizeMIMEType(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// Validate checks the declared size and type, then confirms the bytes really
// are a PNG or JPEG image. On success MIMEType is replaced by the canonical
// type of the detected content, so "image/jpg" or a mislabelled JPEG
// becomes "image/jpeg".
func (img *Image) Validate() error {
	if err := Validate(img.Size, img.MIMEType); err != nil {
		return err
	}
	if len(img.Data) == 0 {
		return ErrEmpty
	}
	if int64(len(img.Data)) > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(img.Data))
	}
	info, err := Sniff(img.Data)
	if err != nil {
		return err
	}
	img.MIMEType = info.MIMEType()
	return nil
}

// Info describes decoded image properties.
type Info struct {
	Format string // "png" or "jpeg"
	Width  int
	Height int
}

// MIMEType returns the canonical content type for the detected format.
func (i Info) MIMEType() string {
	if i.Format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// Sniff decodes the image header and reports its format and dimensions.
// Anything other than PNG or JPEG is ErrUnsupportedType.
func Sniff(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: content is not a decodable image", ErrUnsupportedType)
	}
	if format != "png" && format != "jpeg" {
		return Info{}, fmt.Errorf("%w: content is %s", ErrUnsupportedType, format)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ImageMetadata is the EXIF subset worth knowing about for a screenshot:
// screenshots normally carry none, so any camera or timestamp data means the
// upload came from a device photo and may leak device details.
type ImageMetadata struct {
	CameraMake  string
	CameraModel string
	DateTaken   time.Time
	HasDate     bool
	HasGPS      bool
}

// HasAny reports whether any EXIF field was found.
func (m *ImageMetadata) HasAny() bool {
	return m.CameraMake != "" || m.CameraModel != "" || m.HasDate || m.HasGPS
}

// InspectEXIF extracts EXIF metadata from in-memory image bytes using the
// imagemeta library. Images without EXIF (most PNG screenshots) return
// (nil, nil).
func InspectEXIF(data []byte) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata decoded")
		return nil, nil
	}

	metadata := &ImageMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}
	if !exifData.DateTimeOriginal().IsZero() {
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	}
	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		metadata.HasGPS = true
	}

	if !metadata.HasAny() {
		return nil, nil
	}
	return metadata, nil
}
