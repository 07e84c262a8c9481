package repository

import "errors"

// 見つからないを統一（gorm.ErrRecordNotFoundはinfra側で変換する）
var ErrNotFound = errors.New("not found")

// ユニーク制約違反（冪等キー・通知の重複など）
var ErrDuplicate = errors.New("duplicate")
