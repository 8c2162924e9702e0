package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	ErrEmptyImage        = errors.New("image file is empty")
	ErrImageTooLarge     = errors.New("image file is too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInfected          = errors.New("malicious file detected")
)

// IsRejected reports whether err means the upload itself is unacceptable,
// as opposed to a scanner or encoder failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrEmptyImage) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrInfected)
}

// RejectReason 返回用于指标标签的简短原因。
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyImage):
		return "empty"
	case errors.Is(err, ErrImageTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedFormat):
		return "format"
	case errors.Is(err, ErrInfected):
		return "infected"
	default:
		return "other"
	}
}

// Prepared 是扫描、校验并（必要时）缩放后的图片。
type Prepared struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Processor 负责上传图片的扫描与规范化。
type Processor struct {
	scanner      Scanner
	maxDimension int
	maxBytes     int64
}

func NewProcessor(scanner Scanner, maxDimension int, maxBytes int64) *Processor {
	if scanner == nil {
		scanner = NopScanner{}
	}
	return &Processor{scanner: scanner, maxDimension: maxDimension, maxBytes: maxBytes}
}

type formatInfo struct {
	format      imaging.Format
	ext         string
	contentType string
}

var formats = map[string]formatInfo{
	"jpeg": {imaging.JPEG, "jpg", "image/jpeg"},
	"png":  {imaging.PNG, "png", "image/png"},
	"gif":  {imaging.GIF, "gif", "image/gif"},
	"bmp":  {imaging.BMP, "bmp", "image/bmp"},
	"tiff": {imaging.TIFF, "tiff", "image/tiff"},
}

// Prepare 依次执行：大小检查、病毒扫描、解码（按 EXIF 方向）、超限时等比缩放。
// 未缩放的图片保留原始字节。
func (p *Processor) Prepare(ctx context.Context, filename string, data []byte) (*Prepared, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyImage)
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%s: %w", filename, ErrImageTooLarge)
	}

	if err := p.scanner.Scan(ctx, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}
	info, ok := formats[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}

	out := &Prepared{
		Data:        data,
		ContentType: info.contentType,
		Ext:         info.ext,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}

	if p.maxDimension <= 0 || (out.Width <= p.maxDimension && out.Height <= p.maxDimension) {
		return out, nil
	}

	resized := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, info.format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", filename, err)
	}

	out.Data = buf.Bytes()
	out.Width = resized.Bounds().Dx()
	out.Height = resized.Bounds().Dy()
	return out, nil
}
