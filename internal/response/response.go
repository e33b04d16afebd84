package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the JSON envelope shared by every endpoint.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody carries a stable code and a caller-safe message.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination describes one page of a list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills TotalPages from the item count.
func NewPagination(page, perPage, totalItems int) *Pagination {
	pages := 0
	if perPage > 0 {
		pages = (totalItems + perPage - 1) / perPage
	}
	return &Pagination{Page: page, PerPage: perPage, TotalItems: totalItems, TotalPages: pages}
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
	ElapsedMs *int64 `json:"elapsed_ms,omitempty"`
}

// ─── Success ────────────────────────────────────────────────────────────────

// Success sends data with the given status code.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Data: data, Metadata: buildMetadata(c)})
}

// SuccessWithPagination sends one page of a list.
func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	c.JSON(statusCode, Response{Data: data, Pagination: pagination, Metadata: buildMetadata(c)})
}

// ─── Failure ────────────────────────────────────────────────────────────────

// Fail sends the default message of code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, failure(c, &ErrorBody{Code: code, Message: GetMessage(code)}))
}

// FailWithFields adds per-field validation messages.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, failure(c, &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}))
}

// FailWithMessage overrides the default message of code, e.g. to name the
// file types a phase accepts. An empty message falls back to the default.
func FailWithMessage(c *gin.Context, statusCode int, code ErrCode, message string) {
	if message == "" {
		message = GetMessage(code)
	}
	c.JSON(statusCode, failure(c, &ErrorBody{Code: code, Message: message}))
}

// AbortFail stops the middleware chain.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, failure(c, &ErrorBody{Code: code, Message: GetMessage(code)}))
}

func failure(c *gin.Context, body *ErrorBody) Response {
	return Response{Error: body, Metadata: buildMetadata(c)}
}

func buildMetadata(c *gin.Context) Metadata {
	id := RequestID(c)
	if id == "" {
		id = uuid.NewString()
	}
	md := Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if v, ok := c.Get(contextKeyStartedAt); ok {
		if started, ok := v.(time.Time); ok {
			elapsed := time.Since(started).Milliseconds()
			md.ElapsedMs = &elapsed
		}
	}
	return md
}
