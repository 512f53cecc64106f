package util

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// GetSafeContentType 按文件内容嗅探类型，不信任客户端声明，读取后复位
func GetSafeContentType(reader io.ReadSeeker) (string, error) {
	mtype, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", err
	}
	if _, err = reader.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}

// MakeThumbnail 按宽度等比缩放并编码为 JPEG，原图不超过该宽度时只重新编码
func MakeThumbnail(data []byte, width int) ([]byte, image.Point, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, image.Point{}, err
	}
	size := img.Bounds().Size()

	thumb := img
	if size.X > width {
		thumb = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, image.Point{}, err
	}
	return buf.Bytes(), size, nil
}
