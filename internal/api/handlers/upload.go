package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/internal/vision"
)

var errNoImage = errors.New("no image provided")

// enrollImages collects the uploaded images in submission order: every
// "images" file, else the single "image" file, else "image_base64".
func enrollImages(c *gin.Context) ([]recognition.EnrollImage, error) {
	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files = form.File["images"]
		if len(files) == 0 {
			files = form.File["image"]
			if len(files) > 1 {
				files = files[:1]
			}
		}
	}

	var images []recognition.EnrollImage
	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, recognition.EnrollImage{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if len(images) > 0 {
		return images, nil
	}

	if b64 := c.PostForm("image_base64"); b64 != "" {
		data, err := vision.DecodeBase64(b64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid image_base64 data: %w", vision.ErrUndecodable, err)
		}
		return []recognition.EnrollImage{{Name: "upload.jpg", Data: data}}, nil
	}
	return nil, errNoImage
}

// probeImage reads the single probe image from "image" or "image_base64".
func probeImage(c *gin.Context) (recognition.EnrollImage, error) {
	if fh, err := c.FormFile("image"); err == nil && fh.Filename != "" {
		data, err := readFile(fh)
		if err != nil {
			return recognition.EnrollImage{}, err
		}
		return recognition.EnrollImage{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
	}
	if b64 := c.PostForm("image_base64"); b64 != "" {
		data, err := vision.DecodeBase64(b64)
		if err != nil {
			return recognition.EnrollImage{}, fmt.Errorf("%w: invalid image_base64 data: %w", vision.ErrUndecodable, err)
		}
		return recognition.EnrollImage{Name: "probe.jpg", Data: data}, nil
	}
	return recognition.EnrollImage{}, errNoImage
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}
