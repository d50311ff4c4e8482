package solution

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

const callerKey = "caller"

// Handlers contains HTTP handlers for the operation endpoint
type Handlers struct {
	service *Service
	callers *CallerResolver
	logger  *logger.Logger
}

// NewHandlers creates new operation HTTP handlers
func NewHandlers(service *Service, callers *CallerResolver, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		callers: callers,
		logger:  log,
	}
}

// RegisterRoutes registers the operation routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/operations", h.ListOperations)

		ops := v1.Group("/operations")
		ops.Use(h.CallerMiddleware())
		{
			ops.POST("", h.Execute)
			ops.POST("/:operation", h.ExecuteNamed)
		}
	}
}

// CallerMiddleware resolves the caller identity and rejects anonymous requests
func (h *Handlers) CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := h.callers.Resolve(c.Request)
		if err != nil {
			var resp *types.Response
			if op, payload, ok := h.requested(c); ok {
				// the identity is unverified; the header id is the best initiator there is
				resp = h.service.Reject(c.Request.Context(), types.Caller{ID: c.GetHeader(HeaderUserID)}, op, err, payload)
			} else {
				resp = errorResponse(types.AsMedrexError(err))
			}
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}

		ctx := context.WithValue(c.Request.Context(), logger.CallerIDKey, caller.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(callerKey, caller)
		c.Next()
	}
}

// Execute handles a request whose body names the operation in its type field.
// An unreadable body names no operation, so no access event can be attributed.
func (h *Handlers) Execute(c *gin.Context) {
	payload, merr := h.body(c)
	if merr != nil {
		h.reply(c, errorResponse(merr))
		return
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		h.reply(c, errorResponse(types.NewValidationError(types.ErrCodeInvalidInput, "type is missing", map[string]interface{}{"field": "type"})))
		return
	}

	h.reply(c, h.service.ExecuteByName(c.Request.Context(), h.caller(c), envelope.Type, payload))
}

// ExecuteNamed handles a request naming the operation in the path
func (h *Handlers) ExecuteNamed(c *gin.Context) {
	name := c.Param("operation")
	payload, merr := h.body(c)
	if merr != nil {
		if op, ok := ParseOperation(name); ok {
			h.reply(c, h.service.Reject(c.Request.Context(), h.caller(c), op, merr, payload))
			return
		}
		h.reply(c, errorResponse(merr))
		return
	}
	h.reply(c, h.service.ExecuteByName(c.Request.Context(), h.caller(c), name, payload))
}

// ListOperations returns the operation catalog
func (h *Handlers) ListOperations(c *gin.Context) {
	ops := Operations()
	catalog := make([]gin.H, 0, len(ops))
	for _, op := range ops {
		catalog = append(catalog, gin.H{"name": op.String(), "audited": Audited(op)})
	}
	c.JSON(http.StatusOK, gin.H{"operations": catalog})
}

// body reads the request payload. An invalid payload is still returned with the error
// so rejections can carry whatever detail it holds.
func (h *Handlers) body(c *gin.Context) (json.RawMessage, *types.MedrexError) {
	raw, err := c.GetRawData()
	if err != nil {
		h.logger.WithContext(c.Request.Context()).WithError(err).Warn("Failed to read request body")
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if !json.Valid(raw) {
		return raw, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request payload", nil)
	}
	return raw, nil
}

// requested names the operation a request addresses, from the path or the type field
func (h *Handlers) requested(c *gin.Context) (Operation, json.RawMessage, bool) {
	payload, _ := c.GetRawData()
	name := c.Param("operation")
	if name == "" {
		var envelope struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(payload, &envelope) != nil {
			return 0, payload, false
		}
		name = envelope.Type
	}
	op, ok := ParseOperation(name)
	return op, payload, ok
}

func (h *Handlers) caller(c *gin.Context) types.Caller {
	caller, _ := c.Get(callerKey)
	out, _ := caller.(types.Caller)
	return out
}

func (h *Handlers) reply(c *gin.Context, resp *types.Response) {
	c.JSON(resp.Status, resp)
}
