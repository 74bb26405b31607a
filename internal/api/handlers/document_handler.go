package handlers

import (
	"context"
	"io"
	"strconv"
	"strings"

	"document-service/internal/apperr"
	"document-service/internal/logger"
	"document-service/internal/models"
	"document-service/internal/service"
	"document-service/pkg/utils"

	"github.com/gofiber/fiber/v3"
)

// DocumentService is what the HTTP surface needs from the service layer.
type DocumentService interface {
	Upload(ctx context.Context, file *service.UploadFile, opts service.UploadOptions) (*service.AssetView, error)
	GetSignedURL(ctx context.Context, id string, variant models.VariantKey, inline bool) (*service.SignedURLResponse, error)
	GetStatus(ctx context.Context, id string) (*service.StatusView, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByURL(ctx context.Context, urlOrBlobName string) *service.DeleteByURLResult
	List(ctx context.Context, filter models.AssetFilter, page, limit int) (*service.ListResult, error)
	Reconcile(ctx context.Context) (*service.ReconcileReport, error)
}

// Parts larger than this are streamed to storage instead of buffered.
const defaultStreamThreshold = 8 * 1024 * 1024

type DocumentHandler struct {
	documentService DocumentService
	uploadLimiter   fiber.Handler
	streamThreshold int64
	log             *logger.Logger
}

// NewDocumentHandler takes an optional limiter applied to uploads only.
func NewDocumentHandler(documentService DocumentService, uploadLimiter fiber.Handler, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &DocumentHandler{
		documentService: documentService,
		uploadLimiter:   uploadLimiter,
		streamThreshold: defaultStreamThreshold,
		log:             log.With("component", "document_handler"),
	}
}

func (h *DocumentHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/document")

	if h.uploadLimiter != nil {
		group.Post("/upload", h.Upload, h.uploadLimiter)
	} else {
		group.Post("/upload", h.Upload)
	}
	group.Get("/", h.List)
	group.Post("/delete-by-url", h.DeleteByURL)
	group.Post("/reconcile", h.Reconcile)
	group.Get("/:id/download", h.Download)
	group.Get("/:id/status", h.Status)
	group.Delete("/:id", h.Delete)
}

type deleteByURLRequest struct {
	URL *string `json:"url"`
}

func (h *DocumentHandler) Upload(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	isPublic, err := utils.ParseBool(c.FormValue("isPublic"), false)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "isPublic must be true or false",
		})
	}

	var mediaKind models.MediaKind
	if raw := c.FormValue("mediaKind"); raw != "" {
		kind, ok := models.ParseMediaKind(raw)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "mediaKind must be one of image, video, document",
			})
		}
		mediaKind = kind
	}

	fileName := strings.TrimSpace(c.FormValue("fileName"))
	if fileName != "" && !utils.IsValidFilename(fileName) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid fileName",
		})
	}

	purpose := strings.TrimSpace(c.FormValue("purpose"))
	memberID := strings.TrimSpace(c.FormValue("memberId"))
	for field, value := range map[string]string{"purpose": purpose, "memberId": memberID} {
		if strings.ContainsAny(value, "/\\") || value == "." || value == ".." {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": field + " must not contain path separators",
			})
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.log.Error("Error opening uploaded file", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to read uploaded file",
		})
	}
	defer src.Close()

	file := &service.UploadFile{
		OriginalName: fileHeader.Filename,
		MimeType:     fileHeader.Header.Get(fiber.HeaderContentType),
	}
	if fileHeader.Size > h.streamThreshold {
		file.Reader = src
		file.Size = fileHeader.Size
	} else {
		data, err := io.ReadAll(src)
		if err != nil {
			h.log.Error("Error reading uploaded file", "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unable to read uploaded file",
			})
		}
		file.Data = data
	}

	opts := service.UploadOptions{
		FileName:    fileName,
		ContentType: c.FormValue("contentType"),
		MediaKind:   mediaKind,
		Purpose:     purpose,
		UploadedBy:  c.Get("X-User-ID"),
		MemberID:    memberID,
		Checksum:    c.FormValue("checksum"),
		IsPublic:    isPublic,
	}

	view, err := h.documentService.Upload(c.Context(), file, opts)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *DocumentHandler) Download(c fiber.Ctx) error {
	id, ok := h.documentID(c)
	if !ok {
		return nil
	}
	inline, err := utils.ParseBool(c.Query("inline"), false)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "inline must be true or false",
		})
	}

	resp, err := h.documentService.GetSignedURL(c.Context(), id, models.VariantKey(c.Query("variant")), inline)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(resp)
}

func (h *DocumentHandler) Status(c fiber.Ctx) error {
	id, ok := h.documentID(c)
	if !ok {
		return nil
	}
	view, err := h.documentService.GetStatus(c.Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(view)
}

func (h *DocumentHandler) Delete(c fiber.Ctx) error {
	id, ok := h.documentID(c)
	if !ok {
		return nil
	}
	if _, err := h.documentService.Delete(c.Context(), id); err != nil {
		return h.errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteByURL answers 200 for every outcome; success is in the body.
func (h *DocumentHandler) DeleteByURL(c fiber.Ctx) error {
	var req deleteByURLRequest
	if err := c.Bind().Body(&req); err != nil || req.URL == nil || *req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}
	return c.JSON(h.documentService.DeleteByURL(c.Context(), *req.URL))
}

func (h *DocumentHandler) List(c fiber.Ctx) error {
	var filter models.AssetFilter
	filter.Purpose = strings.TrimSpace(c.Query("purpose"))
	if raw := c.Query("mediaKind"); raw != "" {
		kind, ok := models.ParseMediaKind(raw)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "mediaKind must be one of image, video, document",
			})
		}
		filter.MediaKind = kind
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "page must be a number"})
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a number"})
	}

	result, err := h.documentService.List(c.Context(), filter, page, limit)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(result)
}

func (h *DocumentHandler) Reconcile(c fiber.Ctx) error {
	report, err := h.documentService.Reconcile(c.Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(report)
}

// documentID writes the 400 response itself when :id is not a UUID.
func (h *DocumentHandler) documentID(c fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if !utils.IsValidUUID(id) {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id must be a valid UUID",
		})
		return "", false
	}
	return id, true
}

func (h *DocumentHandler) errorResponse(c fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": apperr.Message(err),
	})
}

func queryInt(c fiber.Ctx, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
