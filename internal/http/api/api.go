package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func BadRequest(msg string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: msg}
}

// FromError maps a typed error to its HTTP status. Unknown errors become a 500
// with a generic message.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	code := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		code = http.StatusNotFound
	case errs.KindDuplicate, errs.KindValidation:
		code = http.StatusBadRequest
	case errs.KindInvalidCredentials, errs.KindAccountDisabled, errs.KindUnauthenticated:
		code = http.StatusUnauthorized
	case errs.KindForbidden:
		code = http.StatusForbidden
	case errs.KindExternal:
		code = http.StatusBadGateway
	case errs.KindTimeout:
		code = http.StatusGatewayTimeout
	}

	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("[api] internal error")
		return &APIError{Code: code, Message: "internal server error"}
	}
	return &APIError{Code: code, Message: errs.Message(err)}
}

// Response lets a handler choose a status other than 200.
type Response struct {
	Status int
	Body   any
}

func Created(body any) Response { return Response{Status: http.StatusCreated, Body: body} }

type (
	HandlerFunc       func(ctx *gin.Context) (any, *APIError)
	AuthHandlerFunc   func(ctx *gin.Context, user *auth.Principal) (any, *APIError)
	DeviceHandlerFunc func(ctx *gin.Context, device *model.Device) (any, *APIError)
)

func write(ctx *gin.Context, result any, apiErr *APIError) {
	if apiErr != nil {
		ctx.AbortWithStatusJSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}
	// handler already streamed, redirected or set 304
	if ctx.Writer.Written() {
		return
	}
	switch r := result.(type) {
	case Response:
		if r.Body == nil {
			ctx.Status(r.Status)
			return
		}
		ctx.JSON(r.Status, r.Body)
	case nil:
		ctx.Status(http.StatusNoContent)
	default:
		ctx.JSON(http.StatusOK, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		write(ctx, result, apiErr)
	}
}

func ResolveEndpointWithAuth(h AuthHandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, apiErr := h(ctx, user)
		write(ctx, result, apiErr)
	}
}

func ResolveDeviceEndpoint(h DeviceHandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		device, ok := middleware.GetCurrentDevice(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, apiErr := h(ctx, device)
		write(ctx, result, apiErr)
	}
}

// Controller wraps a gin group; the verb methods register authenticated handlers.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h AuthHandlerFunc) {
	c.Group.GET(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) POST(path string, h AuthHandlerFunc) {
	c.Group.POST(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUT(path string, h AuthHandlerFunc) {
	c.Group.PUT(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PATCH(path string, h AuthHandlerFunc) {
	c.Group.PATCH(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) DELETE(path string, h AuthHandlerFunc) {
	c.Group.DELETE(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUBLIC_GET(path string, h HandlerFunc) {
	c.Group.GET(path, ResolveEndpoint(h))
}

func (c *Controller) PUBLIC_POST(path string, h HandlerFunc) {
	c.Group.POST(path, ResolveEndpoint(h))
}

func (c *Controller) DEVICE_GET(path string, h DeviceHandlerFunc) {
	c.Group.GET(path, ResolveDeviceEndpoint(h))
}

func (c *Controller) DEVICE_POST(path string, h DeviceHandlerFunc) {
	c.Group.POST(path, ResolveDeviceEndpoint(h))
}
