package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// Downscale shrinks an image so its longest side is at most maxDimension,
// keeping the aspect ratio and the original format. Images already within
// bounds, or a maxDimension of zero, return img unchanged.
func Downscale(img *Image, maxDimension int) (*Image, error) {
	if maxDimension <= 0 {
		return img, nil
	}

	info, err := Sniff(img.Data)
	if err != nil {
		return nil, err
	}
	if info.Width <= maxDimension && info.Height <= maxDimension {
		return img, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	newWidth, newHeight := calculateDimensions(info.Width, info.Height, maxDimension)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	// CatmullRom keeps small UI text legible, which matters for the description.
	draw.CatmullRom.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if info.Format == "png" {
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	log.Debug().
		Str("filename", img.Filename).
		Int("orig_width", info.Width).
		Int("orig_height", info.Height).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Screenshot downscaled")

	return &Image{
		Filename: img.Filename,
		MIMEType: info.MIMEType(),
		Size:     int64(buf.Len()),
		Data:     buf.Bytes(),
	}, nil
}

// calculateDimensions scales width and height so the longest side equals
// maxDimension.
func calculateDimensions(width, height, maxDimension int) (int, int) {
	if width >= height {
		h := height * maxDimension / width
		if h < 1 {
			h = 1
		}
		return maxDimension, h
	}
	w := width * maxDimension / height
	if w < 1 {
		w = 1
	}
	return w, maxDimension
}
