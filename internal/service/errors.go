package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrTargetUserInvalid    = errors.New("目标用户无效")
	ErrMessageTypeInvalid   = errors.New("不支持的消息类型")
	ErrFileNotSupported     = errors.New("不支持的文件类型")
	ErrNotMember            = errors.New("不是该会话成员")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrUserNotFound:         NotFound,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	ErrTargetUserInvalid:    BadRequest,
	ErrMessageTypeInvalid:   BadRequest,
	ErrFileNotSupported:     BadRequest,
	ErrNotMember:            Forbidden,
	UnauthorizedError:       Unauthorized,
	UnExpectedError:         InternalServerError,
}

// CodeOf 解析业务错误码与对外提示，未登记的错误返回 ok=false
func CodeOf(err error) (code int, message string, ok bool) {
	for target, c := range ErrorMap {
		if errors.Is(err, target) {
			return c, target.Error(), true
		}
	}
	return InternalServerError, UnExpectedError.Error(), false
}
