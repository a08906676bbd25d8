package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CodeOK is the business code of every successful envelope.
const CodeOK = 0

// JSONResponse is the {code, message, data} envelope shared by all endpoints
// except the view and cron hooks, which answer with fixed payloads.
type JSONResponse struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Respond writes the envelope, tagging it with the request id when one was assigned.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: ctx.GetString(RequestIDKey),
	})
}

func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, CodeOK, "success", data)
}

// Created answers 201 for a newly stored novel or chapter.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, CodeOK, "created", data)
}

// Error writes an error envelope. Server-side failures are also logged so the
// business code can be traced back from the request id.
func Error(ctx *gin.Context, status int, code int, message string) {
	if status >= http.StatusInternalServerError {
		L().Warn("request failed",
			zap.Int("status", status),
			zap.Int("code", code),
			zap.String("message", message),
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.GetString(RequestIDKey)),
		)
	}
	Respond(ctx, status, code, message, nil)
}
