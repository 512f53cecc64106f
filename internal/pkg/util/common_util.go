package util

import (
	"errors"
	"strconv"
	"strings"
)

// ParseID 解析路径中的数字 ID，0 视为非法
func ParseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}

// PtrString 用于将 string 转换为 *string，空串返回 nil
func PtrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
