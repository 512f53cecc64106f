package response

import (
	"Parley/internal/api/dto"
	"Parley/internal/service"
	stdjson "encoding/json"
	"errors"
	"io"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// 业务码与 service 层保持同一套
const (
	Ok                  = 200
	BadRequest          = service.BadRequest
	Unauthorized        = service.Unauthorized
	Forbidden           = service.Forbidden
	NotFound            = service.NotFound
	InternalServerError = service.InternalServerError
)

// Success HTTP 200 + 业务码 200
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.Response{
		Code:    Ok,
		Message: "success",
		Data:    data,
	})
}

// Fail 业务失败同样返回 HTTP 200，由 code 区分
func Fail(c *gin.Context, businessCode int, message string) {
	c.JSON(http.StatusOK, dto.Response{
		Code:    businessCode,
		Message: message,
	})
}

// Abort 中间件中使用，写入失败信封并终止后续 handler
func Abort(c *gin.Context, businessCode int, message string) {
	c.AbortWithStatusJSON(http.StatusOK, dto.Response{
		Code:    businessCode,
		Message: message,
	})
}

// Error 把 binding / 业务错误翻译成信封，未登记的错误按 500 处理并记日志
func Error(c *gin.Context, err error) {
	if code, message, ok := bindingError(err); ok {
		Fail(c, code, message)
		return
	}

	code, message, ok := service.CodeOf(err)
	if !ok {
		log.ErrorContext(c.Request.Context(), "unhandled error", "path", c.FullPath(), "err", err)
	}
	Fail(c, code, message)
}

func bindingError(err error) (int, string, bool) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return BadRequest, service.ErrParamInvalid.Error(), true
	}

	// gin 默认 binding 走 encoding/json，go-json 用于手动解码的场景
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var stdTypeErr *stdjson.UnmarshalTypeError
	var stdSyntaxErr *stdjson.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) ||
		errors.As(err, &stdTypeErr) || errors.As(err, &stdSyntaxErr) {
		return BadRequest, "Json错误", true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return BadRequest, "请求体为空", true
	}
	return 0, "", false
}
