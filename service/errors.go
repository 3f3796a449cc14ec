package service

import (
	"errors"
)

// 抠图流水线的错误类别，调用方用 errors.Is 判断
var (
	ErrUnavailable         = errors.New("segmentation unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidImage        = errors.New("invalid image")
	ErrInvalidSourceBuffer = errors.New("invalid source buffer")
	ErrRequestFailed       = errors.New("segmentation request failed")
	ErrMaskBlendFailed     = errors.New("mask blend failed")
	ErrEncodingFailed      = errors.New("encoding failed")
	ErrWriteFailed         = errors.New("write failed")
)

// UnavailableRemedy 当前构建没有链接视觉后端时给用户的提示
const UnavailableRemedy = "Subject lifting needs a build with the OpenCV vision backend. Rebuild without the nocv tag and with OpenCV installed."

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnavailable, "unavailable"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidImage, "invalid_image"},
	{ErrInvalidSourceBuffer, "invalid_source_buffer"},
	{ErrRequestFailed, "request_failed"},
	{ErrMaskBlendFailed, "mask_blend_failed"},
	{ErrEncodingFailed, "encoding_failed"},
	{ErrWriteFailed, "write_failed"},
}

// KindOf 返回错误类别名，未知错误返回 "internal"
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
