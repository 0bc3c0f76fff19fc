package http

import (
	"strings"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/in"
	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ParseHandler exposes the triage pipeline over HTTP.
type ParseHandler struct {
	service        in.ParseService
	maxUploadBytes int
}

func NewParseHandler(service in.ParseService, maxUploadBytes int) *ParseHandler {
	return &ParseHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// Register registers parse routes.
func (h *ParseHandler) Register(router fiber.Router) {
	router.Post("/parse", h.Parse)
	router.Post("/extract", h.Extract)
	router.Post("/intent", h.Intent)
	router.Get("/emails/:id", h.GetEmail)
}

// =============================================================================
// Handlers
// =============================================================================

// Parse runs the full pipeline on an uploaded .eml message.
func (h *ParseHandler) Parse(c *fiber.Ctx) error {
	raw, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		return err
	}

	result, err := h.service.HandleRaw(c.UserContext(), raw, domain.SourceUpload, "")
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

type extractRequest struct {
	Text string `json:"text"`
}

// Extract runs contact extraction on plain text.
func (h *ParseHandler) Extract(c *fiber.Ctx) error {
	var req extractRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperr.MissingField("text")
	}
	return response.OK(c, h.service.Extract(c.UserContext(), req.Text))
}

type intentRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Intent classifies a subject and body as offer or request. An empty
// email is classified too and comes back as a skipped request.
func (h *ParseHandler) Intent(c *fiber.Ctx) error {
	var req intentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	return response.OK(c, h.service.ClassifyIntent(c.UserContext(), req.Subject, req.Body))
}

// GetEmail returns an archived result.
func (h *ParseHandler) GetEmail(c *fiber.Ctx) error {
	result, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return response.OK(c, result)
}
