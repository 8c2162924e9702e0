package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

var (
	errNotMultipart         = errors.New("request must be multipart/form-data")
	errInvalidSectionsField = errors.New("sections must be a JSON array")
)

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// formFiles 读取某个字段（兼容 "name" 与 "name[]"）的全部文件。
// 单个文件最多读取 maxBytes+1 字节，超限由 media.Processor 拒绝。
func formFiles(form *multipart.Form, field string, maxBytes int64) ([]profile.ImageFile, error) {
	headers := append(append([]*multipart.FileHeader{}, form.File[field]...), form.File[field+"[]"]...)
	out := make([]profile.ImageFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFileHeader(fh, maxBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, profile.ImageFile{Filename: fh.Filename, Data: data})
	}
	return out, nil
}

func readFileHeader(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// formCaptions 读取标题列表。支持重复字段，也支持单个 JSON 数组字符串。
func formCaptions(form *multipart.Form, field string) ([]string, error) {
	values := append(append([]string{}, form.Value[field]...), form.Value[field+"[]"]...)
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(values[0]), &parsed); err != nil {
			return nil, fmt.Errorf("%s must be a JSON array of strings", field)
		}
		return parsed, nil
	}
	return values, nil
}

func formValue(form *multipart.Form, field string) *string {
	values, ok := form.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// imageBatchFromRequest 解析 images / captions 两个字段。
func imageBatchFromRequest(c *gin.Context, maxBytes int64) ([]profile.ImageFile, []string, error) {
	if !isMultipart(c) {
		return nil, nil, errNotMultipart
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	images, err := formFiles(form, "images", maxBytes)
	if err != nil {
		return nil, nil, err
	}
	captions, err := formCaptions(form, "captions")
	if err != nil {
		return nil, nil, err
	}
	return images, captions, nil
}
