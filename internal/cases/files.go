package cases

import (
	"errors"
	"mime"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// signedURLSeconds is how long a document download link stays valid.
const signedURLSeconds = 60

// UploadDocuments godoc
// @Summary      Attach supporting documents to an application
// @Description  Public: the applicant attaches up to 5 PDF/PNG/JPEG files (5MB each) using the tracking reference
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        ref    path      string   true  "Case reference"
// @Param        files  formData  []file   true  "PDF/PNG/JPEG (max 5)"
// @Success      201    {object}  map[string]any  "results: id, key, name, size or error"
// @Failure      400    {object}  models.ErrorResponse
// @Failure      404    {object}  models.ErrorResponse
// @Router       /cases/track/{ref}/files [post]
func (h *Handler) UploadDocuments(c *fiber.Ctx) error {
	ref := c.Params("ref")
	if _, err := h.svc.Repository().FindByRef(c.UserContext(), ref); err != nil {
		return h.fail(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use files[]")
	}
	// Swagger UI sends "files" even when the field is declared as files[].
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files are required (use key: files[])")
	}
	if len(files) > MaxDocumentsPerRef {
		return fiber.NewError(fiber.StatusBadRequest, "max 5 files allowed")
	}

	actor := actorFrom(c)
	results := make([]fiber.Map, 0, len(files))

	for _, fh := range files {
		res := fiber.Map{"name": fh.Filename, "size": fh.Size}

		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
		}

		f, err := fh.Open()
		if err != nil {
			res["error"] = "open failed"
			results = append(results, res)
			continue
		}
		rec, err := h.svc.AttachDocument(c.UserContext(), ref, Document{
			Name:        fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Body:        f,
		}, actor)
		f.Close()

		switch {
		case err == nil:
			res["id"] = rec.ID
			res["key"] = rec.Key
		case errors.Is(err, ErrDocumentRejected):
			res["error"] = err.Error()
		default:
			res["error"] = "upload failed"
		}
		results = append(results, res)
	}

	// 201 even when some files failed; each item carries its own error.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"results": results})
}

// SignedDownloadURL godoc
// @Summary      Get signed URL
// @Description  Staff obtain a short-lived download link for a case document
// @Tags         files
// @Security     BearerAuth
// @Produce      json
// @Param        fileID  path string true "file id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /files/{fileID}/signed-url [get]
func (h *Handler) SignedDownloadURL(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("fileID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid file id")
	}
	url, err := h.svc.DocumentURL(c.UserContext(), id, signedURLSeconds)
	if errors.Is(err, ErrCaseNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "file not found")
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": signedURLSeconds, "now": time.Now().UTC()})
}
