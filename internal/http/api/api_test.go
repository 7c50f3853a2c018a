package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/vidcast/internal/auth"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
	"github.com/Nixie-Tech-LLC/vidcast/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

func TestFromErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errs.NotFound("video %d not found", 4), http.StatusNotFound},
		{errs.Duplicate("already there"), http.StatusBadRequest},
		{errs.Validation("bad date"), http.StatusBadRequest},
		{errs.ErrInvalidCredentials, http.StatusUnauthorized},
		{errs.Forbidden("nope"), http.StatusForbidden},
		{errs.External(assert.AnError, "agent down"), http.StatusBadGateway},
		{errs.ErrTimeout, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		require.NotNil(t, got)
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
	assert.Nil(t, FromError(nil))
	assert.Equal(t, "internal server error", FromError(assert.AnError).Message)
	assert.Equal(t, "video 4 not found", FromError(errs.NotFound("video %d not found", 4)).Message)
}

func TestControllerWritesResults(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-User") != "" {
			middleware.SetCurrentUser(c, &auth.Principal{UserID: 1, Username: c.GetHeader("X-User")})
		}
	})
	MountGroup(r, GroupConfig{Prefix: "/api"}, ModuleFunc(func(c *Controller) {
		c.GET("/ok", func(ctx *gin.Context, p *auth.Principal) (any, *APIError) {
			return gin.H{"user": p.Username}, nil
		})
		c.POST("/created", func(ctx *gin.Context, _ *auth.Principal) (any, *APIError) {
			return Created(gin.H{"id": 1}), nil
		})
		c.DELETE("/gone", func(ctx *gin.Context, _ *auth.Principal) (any, *APIError) {
			return nil, nil
		})
		c.GET("/same", func(ctx *gin.Context, _ *auth.Principal) (any, *APIError) {
			return Response{Status: http.StatusNotModified}, nil
		})
		c.PUBLIC_GET("/fail", func(ctx *gin.Context) (any, *APIError) {
			return nil, BadRequest("nope")
		})
	}))

	do := func(method, path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/ok", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(http.MethodGet, "/api/ok", "alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"alice"}`, w.Body.String())

	w = do(http.MethodPost, "/api/created", "alice")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(http.MethodDelete, "/api/gone", "alice")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(http.MethodGet, "/api/same", "alice")
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(http.MethodGet, "/api/fail", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"nope"}`, w.Body.String())
}

func TestAdminOnlyGroup(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetCurrentUser(c, &auth.Principal{UserID: 1, IsAdmin: c.GetHeader("X-Admin") == "1"})
	})
	MountGroup(r, GroupConfig{Prefix: "/api", AdminOnly: true}, ModuleFunc(func(c *Controller) {
		c.GET("/users", func(ctx *gin.Context, _ *auth.Principal) (any, *APIError) { return []string{}, nil })
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("X-Admin", "1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type bindTarget struct {
	DeviceID  string  `json:"device_id"  binding:"required"`
	MAC       string  `json:"mac_address" binding:"omitempty,mac"`
	StoreCode *string `json:"store_code" binding:"omitempty,storecode"`
	Name      string  `json:"name"       binding:"omitempty,max=5"`
}

func bind(t *testing.T, body string) *APIError {
	t.Helper()
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	var target bindTarget
	if err := ctx.ShouldBindJSON(&target); err != nil {
		return BindError(err)
	}
	return nil
}

func TestBindErrorMessages(t *testing.T) {
	assert.Nil(t, bind(t, `{"device_id":"pi-1","store_code":" s-01 "}`))

	apiErr := bind(t, `{}`)
	require.NotNil(t, apiErr)
	assert.Equal(t, "device_id is required", apiErr.Message)

	apiErr = bind(t, `{"device_id":"pi-1","mac_address":"zz"}`)
	require.NotNil(t, apiErr)
	assert.Equal(t, "mac_address must be a MAC address", apiErr.Message)

	apiErr = bind(t, `{"device_id":"pi-1","store_code":"toolongstorecode"}`)
	require.NotNil(t, apiErr)
	assert.Contains(t, apiErr.Message, "store code")

	apiErr = bind(t, `{"device_id":"pi-1","store_code":"s 1"}`)
	require.NotNil(t, apiErr)

	apiErr = bind(t, `{"device_id":"pi-1","name":"much too long"}`)
	require.NotNil(t, apiErr)
	assert.Equal(t, "name must be at most 5", apiErr.Message)

	apiErr = bind(t, `{"device_id":`)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
}

func TestServeVideo(t *testing.T) {
	dir := t.TempDir()
	files := storage.NewLocalStorage(dir)
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	serve := func(v *model.Video, rangeHeader string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/stream", nil)
		if rangeHeader != "" {
			ctx.Request.Header.Set("Range", rangeHeader)
		}
		if apiErr := ServeVideo(ctx, files, v); apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		}
		return w
	}

	w := serve(&model.Video{ID: 1, FilePath: path}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0123456789", w.Body.String())

	w = serve(&model.Video{ID: 1, FilePath: path}, "bytes=2-4")
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "234", w.Body.String())

	w = serve(&model.Video{ID: 2, FilePath: filepath.Join(dir, "missing.mp4")}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(&model.Video{ID: 3, FilePath: "/etc/passwd"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
