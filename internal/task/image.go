package task

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const manipulateWidth = 600

// ImageParams is the payload of image tasks: the encoded image and its file name.
type ImageParams struct {
	Name string
	Data []byte
}

func (p ImageParams) Complexity() Complexity {
	return Complexity{ImageSizeKB: float64(len(p.Data)) / 1024.0}
}

// ManipulateLocally rotates the image 90 degrees clockwise, flips it
// vertically and resizes it to 600px width.
func ManipulateLocally(_ context.Context, p Params) (Output, error) {
	img, err := decodeImage(p)
	if err != nil {
		return Output{}, err
	}
	img = imaging.Resize(imaging.FlipV(imaging.Rotate270(img)), manipulateWidth, 0, imaging.Linear)
	return encodeJPEG(img, 99)
}

func GrayscaleLocally(_ context.Context, p Params) (Output, error) {
	img, err := decodeImage(p)
	if err != nil {
		return Output{}, err
	}
	return encodeJPEG(imaging.Grayscale(img), 90)
}

// FlipLocally mirrors the image horizontally.
func FlipLocally(_ context.Context, p Params) (Output, error) {
	img, err := decodeImage(p)
	if err != nil {
		return Output{}, err
	}
	return encodeJPEG(imaging.FlipH(img), 90)
}

func decodeImage(p Params) (image.Image, error) {
	ip, ok := p.(ImageParams)
	if !ok {
		return nil, fmt.Errorf("%w: expected image, got %T", InvalidParamsErr, p)
	}
	if len(ip.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", InvalidParamsErr)
	}
	img, err := imaging.Decode(bytes.NewReader(ip.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not decode image %q: %w", ip.Name, err)
	}
	return img, nil
}

func encodeJPEG(img image.Image, quality int) (Output, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return Output{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return Output{Data: buf.Bytes()}, nil
}
