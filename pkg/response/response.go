package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// definitionOf 结构化错误取其 Definition，普通 Definition 直接返回
func definitionOf(err error) (errors.Definition, bool) {
	var coded errors.Coded
	if stderrors.As(err, &coded) {
		return coded.Definition(), true
	}
	var def errors.Definition
	if stderrors.As(err, &def) {
		// fmt.Errorf("%w: ...") 包装的附加说明保留给调用方
		if msg := err.Error(); msg != def.Message {
			def.Message = msg
		}
		return def, true
	}
	return errors.Definition{}, false
}

func statusFor(code string) int {
	switch code {
	case errors.Unauthorized.Code, errors.InvalidToken.Code, errors.InvalidTokenType.Code:
		return http.StatusUnauthorized
	case errors.WorkerInactive.Code:
		return http.StatusForbidden
	case errors.WorkerNotFound.Code, errors.SiteNotFound.Code, errors.SessionNotFound.Code,
		errors.NoOpenSession.Code, errors.LunchNotFound.Code, errors.SummaryNotFound.Code:
		return http.StatusNotFound
	case errors.SessionAlreadyOpen.Code, errors.SessionNotOpen.Code, errors.LunchTransitionInvalid.Code:
		return http.StatusConflict
	case errors.InvalidRequest.Code, errors.InvalidUserID.Code, errors.CloseReasonInvalid.Code,
		errors.PositionInvalid.Code, errors.DateInvalid.Code:
		return http.StatusBadRequest
	case errors.GeofenceOutside.Code:
		return http.StatusUnprocessableEntity
	case errors.TooManyRequests.Code:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	def, ok := definitionOf(err)
	if !ok {
		def = errors.Definition{Code: "INTERNAL_ERROR", Message: err.Error()}
	}

	c.JSON(statusFor(def.Code), ErrorResponse{
		Error: ErrorDetail{
			Code:    def.Code,
			Message: def.Message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

// Created 用于开工等创建资源的接口
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

// NoContent 返回 204 No Content
func NoContent(ctx context.Context, c *app.RequestContext) {
	c.Status(http.StatusNoContent)
}
