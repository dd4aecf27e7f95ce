package media

import (
	"math"
	"strings"

	"github.com/h2non/bimg"

	"fanwiki/internal/models"
)

type Codec interface {
	// CompressLossless never degrades quality. It returns the input unchanged
	// when there is nothing to gain or the input cannot be decoded.
	CompressLossless(data []byte, mime string) ([]byte, string)
	// CompressLossy fits a raster image into the settings' box and re-encodes it.
	// ok is false for input that is not a decodable image.
	CompressLossy(data []byte, mime string, settings models.LossySettings) (out []byte, outMime string, ok bool)
}

// rasters that are converted to lossless WebP.
var losslessToWebP = map[string]bool{
	"image/bmp":                true,
	"image/x-ms-bmp":           true,
	"image/gif":                true,
	"image/tiff":               true,
	"image/x-icon":             true,
	"image/vnd.microsoft.icon": true,
	"image/x-tga":              true,
	"image/vnd-ms.dds":         true,
	"image/vnd.radiance":       true,
	"image/x-portable-bitmap":  true,
	"image/x-portable-graymap": true,
	"image/x-portable-pixmap":  true,
	"image/x-portable-anymap":  true,
	"image/x-farbfeld":         true,
}

// BimgCodec encodes through libvips.
type BimgCodec struct{}

func NewBimgCodec() *BimgCodec {
	return &BimgCodec{}
}

func (BimgCodec) CompressLossless(data []byte, mime string) ([]byte, string) {
	mime = essence(mime)

	switch {
	case mime == MimeJPEG, mime == MimeWebP, mime == MimeSVG:
		return data, mime
	case mime == MimePNG:
		out, err := bimg.NewImage(data).Process(bimg.Options{
			Type:          bimg.PNG,
			Compression:   9,
			StripMetadata: true,
		})
		if err != nil || len(out) >= len(data) {
			return data, mime
		}
		return out, MimePNG
	case losslessToWebP[mime]:
		out, err := bimg.NewImage(data).Process(bimg.Options{
			Type:     bimg.WEBP,
			Lossless: true,
		})
		if err != nil {
			return data, mime
		}
		return out, MimeWebP
	default:
		return data, mime
	}
}

func (BimgCodec) CompressLossy(data []byte, mime string, settings models.LossySettings) ([]byte, string, bool) {
	mime = essence(mime)
	if mime == MimeSVG {
		return data, mime, true
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", false
	}

	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, "", false
	}

	opts := bimg.Options{
		Type:          bimg.WEBP,
		Quality:       clampQuality(settings.Quality),
		StripMetadata: true,
	}
	width, height := FitWithin(size.Width, size.Height, settings.MaxWidth, settings.MaxHeight)
	if width != size.Width || height != size.Height {
		opts.Width = width
		opts.Height = height
		opts.Force = true
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, "", false
	}
	return out, MimeWebP, true
}

// FitWithin scales (width, height) down to fit inside (maxWidth, maxHeight)
// keeping the aspect ratio. A non-positive bound is unbounded. Never upscales.
func FitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}

	scale := 1.0
	if maxWidth > 0 {
		scale = math.Min(scale, float64(maxWidth)/float64(width))
	}
	if maxHeight > 0 {
		scale = math.Min(scale, float64(maxHeight)/float64(height))
	}
	if scale >= 1 {
		return width, height
	}

	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return max(w, 1), max(h, 1)
}

func clampQuality(q int) int {
	return min(max(q, 1), 100)
}
