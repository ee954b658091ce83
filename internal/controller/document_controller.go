package controller

import (
	"io"
	"strconv"
	"strings"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/serverutils"
	"testcase-workflow-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Form fields forwarded to the backend as-is; everything else lands in
// the upload metadata.
var reservedUploadFields = map[string]struct{}{
	"document_id":   {},
	"document_type": {},
	"enable_rag":    {},
	"session_id":    {},
}

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
}

type documentController struct {
	service service.IDocumentService
}

func NewDocumentController(service service.IDocumentService) IDocumentController {
	return &documentController{service: service}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Post("/documents", c.Upload)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Document file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to open uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
	}

	enableRAG := true
	if raw := ctx.FormValue("enable_rag"); raw != "" {
		enableRAG, err = strconv.ParseBool(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "enable_rag must be a boolean")
		}
	}

	req := dto.UploadDocumentRequest{
		Filename:     fileHeader.Filename,
		Content:      content,
		DocumentId:   ctx.FormValue("document_id"),
		DocumentType: ctx.FormValue("document_type"),
		EnableRAG:    enableRAG,
		SessionId:    ctx.FormValue("session_id"),
		Metadata:     uploadMetadata(ctx),
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Upload(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Document uploaded", res))
}

func uploadMetadata(ctx *fiber.Ctx) map[string]string {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil
	}

	metadata := map[string]string{}
	for key, values := range form.Value {
		if _, reserved := reservedUploadFields[key]; reserved || len(values) == 0 {
			continue
		}
		metadata[key] = strings.Join(values, ",")
	}
	return metadata
}
