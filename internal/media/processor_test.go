package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScanner struct {
	err     error
	scanned int
}

func (s *stubScanner) Scan(_ context.Context, r io.Reader) error {
	s.scanned++
	_, _ = io.Copy(io.Discard, r)
	return s.err
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestPrepare_SmallImageKeptAsIs(t *testing.T) {
	scanner := &stubScanner{}
	p := NewProcessor(scanner, 100, 1<<20)
	data := encodePNG(t, 40, 20)

	out, err := p.Prepare(context.Background(), "a.png", data)
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "image/png", out.ContentType)
	assert.Equal(t, "png", out.Ext)
	assert.Equal(t, 40, out.Width)
	assert.Equal(t, 20, out.Height)
	assert.Equal(t, 1, scanner.scanned)
}

func TestPrepare_DownscalesLargeImage(t *testing.T) {
	p := NewProcessor(nil, 100, 1<<20)

	out, err := p.Prepare(context.Background(), "big.png", encodePNG(t, 400, 200))
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 50, out.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, cfg.Width)
}

func TestPrepare_Rejections(t *testing.T) {
	p := NewProcessor(nil, 100, 64)

	_, err := p.Prepare(context.Background(), "empty.png", nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = p.Prepare(context.Background(), "big.png", make([]byte, 65))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = p.Prepare(context.Background(), "notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, IsRejected(err))
	assert.Equal(t, "format", RejectReason(err))
}

func TestPrepare_Infected(t *testing.T) {
	p := NewProcessor(&stubScanner{err: ErrInfected}, 100, 1<<20)

	_, err := p.Prepare(context.Background(), "a.png", encodePNG(t, 10, 10))
	assert.ErrorIs(t, err, ErrInfected)
	assert.True(t, IsRejected(err))
}

func TestPrepare_ScannerFailureIsNotRejection(t *testing.T) {
	p := NewProcessor(&stubScanner{err: errors.New("clamd down")}, 100, 1<<20)

	_, err := p.Prepare(context.Background(), "a.png", encodePNG(t, 10, 10))
	require.Error(t, err)
	assert.False(t, IsRejected(err))
}

func TestNewScanner(t *testing.T) {
	assert.IsType(t, NopScanner{}, NewScanner(""))
	assert.IsType(t, &ClamdScanner{}, NewScanner("tcp://127.0.0.1:3310"))
}
