package artwork

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Register the decoders of the thumbnail formats served by video platforms.
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// jpegQuality is the quality of re-encoded covers.
	jpegQuality = 90
	// maxCoverSide is the largest side of an embedded cover in pixels.
	maxCoverSide = 1200
)

// CropToSquare cuts the largest centered square out of img.
// Landscape images keep their full height, portrait images their full width.
func CropToSquare(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width == height {
		return img
	}

	side := min(width, height)

	origin := bounds.Min
	if width > height {
		origin.X += (width - height) / 2
	} else {
		origin.Y += (height - width) / 2
	}

	square := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Copy(square, image.Point{}, img, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(side, side))}, draw.Src, nil)

	return square
}

// ConvertToCover decodes a thumbnail, crops it to a square, downscales oversized images and encodes a JPEG.
func ConvertToCover(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}

	cover := CropToSquare(img)

	if side := cover.Bounds().Dx(); side > maxCoverSide {
		scaled := image.NewRGBA(image.Rect(0, 0, maxCoverSide, maxCoverSide))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), cover, cover.Bounds(), draw.Src, nil)
		cover = scaled
	}

	var buffer bytes.Buffer
	if err = jpeg.Encode(&buffer, cover, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s thumbnail as JPEG: %w", format, err)
	}

	return buffer.Bytes(), nil
}
