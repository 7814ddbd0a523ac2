package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
)

const (
	// MaxSize ограничивает размер загружаемого файла.
	MaxSize = 10 << 20
	// MaxPixels ограничивает ширину*высоту до декодирования: маленький файл
	// может объявить огромный холст.
	MaxPixels = 40_000_000
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrTooManyPixels   = errors.New("image dimensions too large")
)

// allowedTypes: допустимые MIME-типы и расширения, под которыми они хранятся.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// Image хранит перекодированное изображение, готовое к загрузке в хранилище.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Size возвращает размер данных в байтах.
func (i *Image) Size() int64 { return int64(len(i.Data)) }

// Reader возвращает новый reader поверх данных.
func (i *Image) Reader() io.Reader { return bytes.NewReader(i.Data) }

// Process проверяет реальный тип файла по первым 512 байтам, декодирует
// изображение, если его размеры в пределах MaxPixels, и кодирует заново. Метаданные исходного файла отбрасываются.
func Process(r io.Reader) (*Image, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(raw) > MaxSize {
		return nil, ErrTooLarge
	}

	contentType := http.DetectContentType(raw)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnsupportedType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnsupportedType, err)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &Image{Data: buf.Bytes(), ContentType: contentType, Ext: ext}, nil
}
