package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"time"

	"github.com/elastic-io/mediagate/internal/api"
	"github.com/elastic-io/mediagate/internal/config"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/service"
	"github.com/elastic-io/mediagate/internal/types"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func init() {
	API := UploadAPI{name: "upload"}
	api.APIRegister(API.name, &API)
}

// 失败时只返回通用信息，完整错误写日志
const failureMessage = "Failed to process upload"

type UploadAPI struct {
	name    string
	service service.UploadService
	logger  *zap.Logger
	// timeout 单个请求处理的最长时间，0 表示不限
	timeout time.Duration
}

func (api *UploadAPI) Init(c *config.Config) {
	if c.Service == nil {
		panic(fmt.Errorf("upload service is not configured"))
	}
	api.service = c.Service
	api.logger = log.Named("upload")
	_, api.timeout, _ = c.Timeouts()
}

// requestContext 派生本次请求的 context，handler 返回时必须 cancel
func (api *UploadAPI) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if api.timeout > 0 {
		return context.WithTimeout(c.UserContext(), api.timeout)
	}
	return context.WithCancel(c.UserContext())
}

func (api *UploadAPI) RegisterRoutes(app *fiber.App) {
	api.logger.Info("Registering upload API routes")

	g := app.Group("/api")
	g.Post("/uploads", api.handleUpload)
	g.Post("/uploads/raw", api.handleRawUpload)
	g.Delete("/objects/*", api.handleDeleteObject)
}

// multipartReader 从 Content-Type 取 boundary，请求体按流读取
func multipartReader(c *fiber.Ctx) (*multipart.Reader, error) {
	mediaType, params, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil {
		return nil, fmt.Errorf("invalid content type: %w", err)
	}
	if !strings.EqualFold(mediaType, fiber.MIMEMultipartForm) {
		return nil, fmt.Errorf("expected %s, got %s", fiber.MIMEMultipartForm, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("missing multipart boundary")
	}

	var body io.Reader
	if c.Request().IsBodyStream() {
		body = c.Request().BodyStream()
	} else {
		body = bytes.NewReader(c.Body())
	}
	return multipart.NewReader(body, boundary), nil
}

func (api *UploadAPI) handleUpload(c *fiber.Ctx) error {
	mr, err := multipartReader(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := api.requestContext(c)
	defer cancel()

	res, err := api.service.Ingest(ctx, mr)
	if err != nil {
		return api.fail(c, err)
	}
	return c.JSON(res)
}

func (api *UploadAPI) handleRawUpload(c *fiber.Ctx) error {
	mr, err := multipartReader(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := api.requestContext(c)
	defer cancel()

	res, err := api.service.IngestRaw(ctx, mr)
	if err != nil {
		return api.fail(c, err)
	}
	return c.JSON(res)
}

func (api *UploadAPI) handleDeleteObject(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return fiber.NewError(fiber.StatusBadRequest, "object key is required")
	}

	ctx, cancel := api.requestContext(c)
	defer cancel()

	err := api.service.Delete(ctx, key)
	switch {
	case errors.Is(err, types.ErrStoreNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		api.logger.Error("Failed to delete object", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete object"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (api *UploadAPI) fail(c *fiber.Ctx, err error) error {
	api.logger.Error("Upload failed",
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": failureMessage})
}
