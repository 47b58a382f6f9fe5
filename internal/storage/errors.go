package storage

import "errors"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")
