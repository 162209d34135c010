package predict

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
)

const dataURLPrefix = "data:image"

// DecodeDataURL decodes a data:image/...;base64 URL into an image.
func DecodeDataURL(dataURL string) (image.Image, error) {
	if !strings.HasPrefix(dataURL, dataURLPrefix) {
		return nil, fmt.Errorf("%w: expected %s data URL", ErrInvalidImage, dataURLPrefix)
	}
	_, encoded, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing data URL payload", ErrInvalidImage)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode image data: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// EncodeDataURL compresses img as JPEG and wraps it in a data URL.
func EncodeDataURL(img image.Image, quality int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("%w: nil frame", ErrInvalidImage)
	}
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
