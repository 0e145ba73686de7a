package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
)

type TemplateRenderer interface {
	Resolve(name string, channel domain.Channel, params template.Params) (domain.RenderedMessage, error)
	Names() []string
	Channels(name string) []domain.Channel
}

type TemplateHandler struct {
	templates TemplateRenderer
}

func RegisterTemplateRoutes(router fiber.Router, templates TemplateRenderer) error {
	if templates == nil {
		return fmt.Errorf("template renderer is required")
	}
	h := &TemplateHandler{templates: templates}

	v1 := router.Group("/v1")
	v1.Get("/templates", h.ListTemplates)
	v1.Post("/templates/render", h.RenderTemplate)

	return nil
}

type renderRequest struct {
	TemplateName string          `json:"templateName"`
	Channel      string          `json:"channel"`
	Params       template.Params `json:"params"`
}

type templateResponse struct {
	Name     string   `json:"name"`
	Channels []string `json:"channels"`
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	names := h.templates.Names()
	items := make([]templateResponse, 0, len(names))
	for _, name := range names {
		channels := h.templates.Channels(name)
		item := templateResponse{Name: name, Channels: make([]string, 0, len(channels))}
		for _, ch := range channels {
			item.Channels = append(item.Channels, ch.String())
		}
		items = append(items, item)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

// RenderTemplate previews a message without persisting or sending it.
func (h *TemplateHandler) RenderTemplate(c *fiber.Ctx) error {
	var req renderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(req.TemplateName)
	if name == "" {
		return fmt.Errorf("%w: templateName is required", domain.ErrValidation)
	}

	msg, err := h.templates.Resolve(name, channel, req.Params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(contentResponse{
		Subject: msg.Subject,
		Body:    msg.Body,
	})
}
