package mobi

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoImages   = errors.New("mobi: book has no images")
	ErrImageIndex = errors.New("mobi: image index out of range")
	ErrNoCover    = errors.New("mobi: book has no cover image")
)

// findImages locates the image records once. Images follow the text
// records, but index and separator records may sit in between, so the
// first record that decodes as an image starts the run. The run ends at
// the first record after it that is not an image.
func (d *Document) findImages() {
	d.imageOnce.Do(func() {
		if d.header == nil {
			return
		}
		n := d.pdb.RecordCount()
		for i := d.ntext + 1; i < n; i++ {
			if _, ok := d.sniffImage(i); ok {
				d.firstImage = i
				break
			}
		}
		if d.firstImage < 0 {
			d.logger.Debug("no image records found")
			return
		}
		for i := d.firstImage; i < n; i++ {
			if _, ok := d.sniffImage(i); !ok {
				break
			}
			d.imageCount++
		}
		d.logger.Debug("found images", "firstRecord", d.firstImage, "count", d.imageCount)
	})
}

// sniffImage reports the format of record i when it holds a decodable image.
func (d *Document) sniffImage(i int) (string, bool) {
	rec, err := d.pdb.Record(i)
	if err != nil || len(rec) == 0 {
		return "", false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(rec))
	if err != nil {
		return "", false
	}
	return format, true
}

// FirstImageRecord returns the PDB index of the first image record, or -1.
func (d *Document) FirstImageRecord() int {
	d.findImages()
	return d.firstImage
}

// ImageCount returns the number of consecutive decodable image records
// starting at FirstImageRecord. Images past a record that fails to decode
// are not counted but stay reachable through ImageData.
func (d *Document) ImageCount() int {
	d.findImages()
	return d.imageCount
}

// ImageData returns the raw bytes of image i (0-based), which is record
// FirstImageRecord()+i. The record is not checked to hold an image.
func (d *Document) ImageData(i int) ([]byte, error) {
	d.findImages()
	if d.firstImage < 0 {
		return nil, ErrNoImages
	}
	n := d.pdb.RecordCount() - d.firstImage
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: %d of %d", ErrImageIndex, i, n)
	}
	return d.pdb.Record(d.firstImage + i)
}

// ImageFormat returns the format name of image i as registered with the
// image package, e.g. "jpeg" or "png".
func (d *Document) ImageFormat(i int) (string, error) {
	data, err := d.ImageData(i)
	if err != nil {
		return "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("image %d: %w", i, err)
	}
	return format, nil
}

// Image decodes image i (0-based), applying any EXIF orientation.
func (d *Document) Image(i int) (image.Image, error) {
	data, err := d.ImageData(i)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", i, err)
	}
	return img, nil
}

// CoverIndex returns the image index of the cover named in EXTH, or -1.
func (d *Document) CoverIndex() int {
	return d.coverIndex
}

// Cover decodes the cover image named in EXTH.
func (d *Document) Cover() (image.Image, error) {
	if d.coverIndex < 0 {
		return nil, ErrNoCover
	}
	img, err := d.Image(d.coverIndex)
	if err != nil {
		return nil, fmt.Errorf("cover: %w", err)
	}
	return img, nil
}

// Thumbnail returns the cover scaled to fit within width x height,
// keeping its aspect ratio. Books without a cover use their first image.
func (d *Document) Thumbnail(width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mobi: invalid thumbnail size %dx%d", width, height)
	}
	img, err := d.Cover()
	if errors.Is(err, ErrNoCover) {
		img, err = d.Image(0)
	}
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, width, height, imaging.Lanczos), nil
}
