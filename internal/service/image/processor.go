package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
)

const (
	defaultMaxWidth     = 1280
	defaultMaxSizeBytes = 1 * 1024 * 1024
	defaultQuality      = 80
)

// ErrEmpty — загруженный файл пуст.
var ErrEmpty = errors.New("empty upload")

// ProcessedImage — изображение, перекодированное в JPEG в памяти. На диск ничего не пишется.
type ProcessedImage struct {
	Data     []byte
	Width    int
	Height   int
	MimeType string
}

// DataURL собирает data URL для передачи картинки в запросе.
func (p ProcessedImage) DataURL() string {
	return DataURL(p.MimeType, p.Data)
}

type Processor struct {
	maxWidth    int
	maxSizeByte int
	quality     int
}

func NewProcessor() *Processor {
	return &Processor{
		maxWidth:    defaultMaxWidth,
		maxSizeByte: defaultMaxSizeBytes,
		quality:     defaultQuality,
	}
}

// IsImage сообщает, умеет ли процессор декодировать файл данного типа/имени (jpg, jpeg, png).
func IsImage(contentType, fileName string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg", "image/png":
		return true
	}
	lower := strings.ToLower(fileName)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".png")
}

// Process декодирует jpg/png, уменьшает до maxWidth и пережимает в JPEG,
// пока результат не влезет в лимит размера.
func (p *Processor) Process(data []byte) (ProcessedImage, error) {
	if len(data) == 0 {
		return ProcessedImage{}, ErrEmpty
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ProcessedImage{}, fmt.Errorf("decode image: %w", err)
	}

	origBounds := img.Bounds()
	origWidth := origBounds.Dx()
	origHeight := origBounds.Dy()
	if origWidth == 0 || origHeight == 0 {
		return ProcessedImage{}, fmt.Errorf("invalid image size: %dx%d", origWidth, origHeight)
	}

	quality := min(max(p.quality, 1), 100)

	resizedWidth := min(origWidth, p.maxWidth)
	resizedHeight := max(1, origHeight*resizedWidth/origWidth)

	var encoded []byte
	for {
		resized := resizeNearest(img, resizedWidth, resizedHeight)
		encoded, err = encodeJPEG(resized, quality)
		if err != nil {
			return ProcessedImage{}, err
		}

		if len(encoded) <= p.maxSizeByte {
			break
		}

		if resizedWidth <= 320 {
			return ProcessedImage{}, fmt.Errorf("image exceeds max size %d bytes even after downscale", p.maxSizeByte)
		}

		resizedWidth = max(1, int(float64(resizedWidth)*0.9))
		resizedHeight = max(1, origHeight*resizedWidth/origWidth)
	}

	return ProcessedImage{
		Data:     encoded,
		Width:    resizedWidth,
		Height:   resizedHeight,
		MimeType: "image/jpeg",
	}, nil
}

// DataURL кодирует байты в data URL; пустой mime трактуется как JPEG.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeNearest(src image.Image, width int, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	srcBounds := src.Bounds()
	srcWidth := srcBounds.Dx()
	srcHeight := srcBounds.Dy()
	if srcWidth == 0 || srcHeight == 0 {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		srcY := srcBounds.Min.Y + y*srcHeight/height
		for x := range width {
			srcX := srcBounds.Min.X + x*srcWidth/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}

	return dst
}
