package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"document-service/internal/apperr"
	"document-service/internal/models"
	"document-service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

type fakeDocumentService struct {
	uploadFile *service.UploadFile
	streamed   []byte
	uploadOpts service.UploadOptions
	uploadErr  error

	signedID      string
	signedVariant models.VariantKey
	signedInline  bool
	signedErr     error

	statusErr error
	deleteErr error

	deleteByURLInput string

	listFilter models.AssetFilter
	listPage   int
	listLimit  int

	reconcileErr error
}

func (f *fakeDocumentService) Upload(_ context.Context, file *service.UploadFile, opts service.UploadOptions) (*service.AssetView, error) {
	f.uploadFile = file
	f.uploadOpts = opts
	if file.Reader != nil {
		data, err := io.ReadAll(file.Reader)
		if err != nil {
			return nil, err
		}
		f.streamed = data
	}
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &service.AssetView{ID: testID, FileName: file.OriginalName, Size: int64(len(file.Data)), Status: models.AssetStatusReady}, nil
}

func (f *fakeDocumentService) GetSignedURL(_ context.Context, id string, variant models.VariantKey, inline bool) (*service.SignedURLResponse, error) {
	f.signedID, f.signedVariant, f.signedInline = id, variant, inline
	if f.signedErr != nil {
		return nil, f.signedErr
	}
	return &service.SignedURLResponse{URL: "https://acct.example.com/assets/a.pdf?sig=1", Disposition: service.DispositionAttachment}, nil
}

func (f *fakeDocumentService) GetStatus(_ context.Context, id string) (*service.StatusView, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &service.StatusView{ID: id, Status: models.AssetStatusReady}, nil
}

func (f *fakeDocumentService) Delete(context.Context, string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return true, nil
}

func (f *fakeDocumentService) DeleteByURL(_ context.Context, input string) *service.DeleteByURLResult {
	f.deleteByURLInput = input
	return &service.DeleteByURLResult{Success: false, Message: "Failed to delete blob from Azure Storage"}
}

func (f *fakeDocumentService) List(_ context.Context, filter models.AssetFilter, page, limit int) (*service.ListResult, error) {
	f.listFilter, f.listPage, f.listLimit = filter, page, limit
	return &service.ListResult{Items: []*service.AssetView{}, Page: page, Limit: limit}, nil
}

func (f *fakeDocumentService) Reconcile(context.Context) (*service.ReconcileReport, error) {
	if f.reconcileErr != nil {
		return nil, f.reconcileErr
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &service.ReconcileReport{StartedAt: now, CompletedAt: now, OrphanedBlobs: []string{"images/x.png"}}, nil
}

func newTestApp(svc DocumentService, limiter fiber.Handler) *fiber.App {
	app := fiber.New()
	NewDocumentHandler(svc, limiter, nil).RegisterRoutes(app)
	return app
}

func multipartRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/document/upload", body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v), string(data))
}

func TestUploadPassesFormFields(t *testing.T) {
	svc := &fakeDocumentService{}
	app := newTestApp(svc, nil)

	req := multipartRequest(t, map[string]string{
		"mediaKind": "document",
		"purpose":   "resume",
		"memberId":  "m1",
		"isPublic":  "true",
		"checksum":  "5d41402abc4b2a76b9719d911017c592",
		"fileName":  "cv.pdf",
	}, "upload.pdf", []byte("%PDF-1.4"))
	req.Header.Set("X-User-ID", "user-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var view service.AssetView
	decodeBody(t, resp, &view)
	assert.Equal(t, testID, view.ID)

	require.NotNil(t, svc.uploadFile)
	assert.Equal(t, "upload.pdf", svc.uploadFile.OriginalName)
	assert.Equal(t, []byte("%PDF-1.4"), svc.uploadFile.Data)
	assert.Equal(t, models.MediaKindDocument, svc.uploadOpts.MediaKind)
	assert.Equal(t, "resume", svc.uploadOpts.Purpose)
	assert.Equal(t, "m1", svc.uploadOpts.MemberID)
	assert.Equal(t, "cv.pdf", svc.uploadOpts.FileName)
	assert.Equal(t, "user-1", svc.uploadOpts.UploadedBy)
	assert.True(t, svc.uploadOpts.IsPublic)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		fileName string
	}{
		{"missing file", map[string]string{"purpose": "resume"}, ""},
		{"bad media kind", map[string]string{"mediaKind": "audio"}, "a.txt"},
		{"bad isPublic", map[string]string{"isPublic": "sometimes"}, "a.txt"},
		{"bad file name", map[string]string{"fileName": "../a.txt"}, "a.txt"},
		{"purpose with slash", map[string]string{"purpose": "logos/extra"}, "a.txt"},
		{"member id with backslash", map[string]string{"memberId": `m1\x`}, "a.txt"},
		{"member id parent dir", map[string]string{"memberId": ".."}, "a.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeDocumentService{}
			app := newTestApp(svc, nil)

			resp, err := app.Test(multipartRequest(t, tt.fields, tt.fileName, []byte("x")))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Nil(t, svc.uploadFile)
		})
	}
}

func TestUploadAllowsDotsInPurpose(t *testing.T) {
	svc := &fakeDocumentService{}
	app := newTestApp(svc, nil)

	resp, err := app.Test(multipartRequest(t, map[string]string{"purpose": "v1..2", "memberId": "m1"}, "a.pdf", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "v1..2", svc.uploadOpts.Purpose)
}

func TestUploadStreamsLargeParts(t *testing.T) {
	svc := &fakeDocumentService{}
	app := fiber.New()
	h := NewDocumentHandler(svc, nil, nil)
	h.streamThreshold = 4
	h.RegisterRoutes(app)

	payload := []byte("larger than four bytes")
	resp, err := app.Test(multipartRequest(t, nil, "big.pdf", payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NotNil(t, svc.uploadFile)
	assert.Nil(t, svc.uploadFile.Data)
	assert.Equal(t, int64(len(payload)), svc.uploadFile.Size)
	assert.Equal(t, payload, svc.streamed)

	small := &fakeDocumentService{}
	resp, err = newTestApp(small, nil).Test(multipartRequest(t, nil, "small.pdf", []byte("tiny")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Nil(t, small.uploadFile.Reader)
	assert.Equal(t, []byte("tiny"), small.uploadFile.Data)
}

func TestUploadMapsServiceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("file is empty"), http.StatusBadRequest},
		{apperr.New(apperr.ErrChecksumMismatch, "checksum mismatch"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.ErrStorage, "upload failed"), http.StatusInternalServerError},
		{apperr.New(apperr.ErrMetadata, "insert failed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &fakeDocumentService{uploadErr: tt.err}
		app := newTestApp(svc, nil)

		resp, err := app.Test(multipartRequest(t, nil, "a.txt", []byte("x")))
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.StatusCode, tt.err.Error())

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, apperr.Message(tt.err), body["error"])
	}
}

func TestUploadLimiterRunsBeforeHandler(t *testing.T) {
	svc := &fakeDocumentService{}
	limiter := func(c fiber.Ctx) error {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
	}
	app := newTestApp(svc, limiter)

	resp, err := app.Test(multipartRequest(t, nil, "a.txt", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Nil(t, svc.uploadFile)

	calls := 0
	passing := func(c fiber.Ctx) error {
		calls++
		return c.Next()
	}
	svc = &fakeDocumentService{}
	resp, err = newTestApp(svc, passing).Test(multipartRequest(t, nil, "a.txt", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, calls)
	assert.NotNil(t, svc.uploadFile)
}

func TestDownload(t *testing.T) {
	svc := &fakeDocumentService{}
	app := newTestApp(svc, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/document/"+testID+"/download?variant=thumbnail&inline=true", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testID, svc.signedID)
	assert.Equal(t, models.VariantThumbnail, svc.signedVariant)
	assert.True(t, svc.signedInline)

	var body service.SignedURLResponse
	decodeBody(t, resp, &body)
	assert.Contains(t, body.URL, "sig=1")
}

func TestDownloadErrors(t *testing.T) {
	resp, err := newTestApp(&fakeDocumentService{}, nil).Test(httptest.NewRequest(http.MethodGet, "/document/not-a-uuid/download", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = newTestApp(&fakeDocumentService{}, nil).Test(httptest.NewRequest(http.MethodGet, "/document/"+testID+"/download?inline=perhaps", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svc := &fakeDocumentService{signedErr: apperr.NotFound("Document with ID %s not found", testID)}
	resp, err = newTestApp(svc, nil).Test(httptest.NewRequest(http.MethodGet, "/document/"+testID+"/download", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Document with ID "+testID+" not found", body["error"])
}

func TestStatus(t *testing.T) {
	resp, err := newTestApp(&fakeDocumentService{}, nil).Test(httptest.NewRequest(http.MethodGet, "/document/"+testID+"/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, testID, body["id"])
	assert.Equal(t, "ready", body["status"])
	assert.Contains(t, body, "message")
	assert.Nil(t, body["message"])
}

func TestDelete(t *testing.T) {
	resp, err := newTestApp(&fakeDocumentService{}, nil).Test(httptest.NewRequest(http.MethodDelete, "/document/"+testID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	svc := &fakeDocumentService{deleteErr: apperr.NotFound("Document with ID %s not found", testID)}
	resp, err = newTestApp(svc, nil).Test(httptest.NewRequest(http.MethodDelete, "/document/"+testID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteByURL(t *testing.T) {
	svc := &fakeDocumentService{}
	app := newTestApp(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/document/delete-by-url", strings.NewReader(`{"url":"https://acct.example.com/assets/images/a.png"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://acct.example.com/assets/images/a.png", svc.deleteByURLInput)

	var body service.DeleteByURLResult
	decodeBody(t, resp, &body)
	assert.False(t, body.Success)
	assert.Equal(t, "Failed to delete blob from Azure Storage", body.Message)
}

func TestDeleteByURLRequiresURL(t *testing.T) {
	for _, payload := range []string{`{}`, `{"url":""}`, `not json`} {
		svc := &fakeDocumentService{}
		req := httptest.NewRequest(http.MethodPost, "/document/delete-by-url", strings.NewReader(payload))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, err := newTestApp(svc, nil).Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
		assert.Empty(t, svc.deleteByURLInput)
	}
}

func TestList(t *testing.T) {
	svc := &fakeDocumentService{}
	resp, err := newTestApp(svc, nil).Test(httptest.NewRequest(http.MethodGet, "/document?purpose=resume&mediaKind=document&page=2&limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "resume", svc.listFilter.Purpose)
	assert.Equal(t, models.MediaKindDocument, svc.listFilter.MediaKind)
	assert.Equal(t, 2, svc.listPage)
	assert.Equal(t, 5, svc.listLimit)

	resp, err = newTestApp(svc, nil).Test(httptest.NewRequest(http.MethodGet, "/document?page=two", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReconcile(t *testing.T) {
	resp, err := newTestApp(&fakeDocumentService{}, nil).Test(httptest.NewRequest(http.MethodPost, "/document/reconcile", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report service.ReconcileReport
	decodeBody(t, resp, &report)
	assert.Equal(t, []string{"images/x.png"}, report.OrphanedBlobs)

	svc := &fakeDocumentService{reconcileErr: apperr.New(apperr.ErrConflict, "reconciliation already running")}
	resp, err = newTestApp(svc, nil).Test(httptest.NewRequest(http.MethodPost, "/document/reconcile", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthRoutes(t *testing.T) {
	app := fiber.New()
	RegisterHealthRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
