package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/queue"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"github.com/kursadbilgin/tutor-notifier/internal/service"
	"github.com/kursadbilgin/tutor-notifier/internal/template"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	Dispatch(ctx context.Context, req service.Request) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	Attempts(ctx context.Context, id string) ([]domain.NotificationAttempt, error)
	Requeue(ctx context.Context, id string) (*domain.Notification, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

type AsyncNotificationService interface {
	Enqueue(ctx context.Context, req service.Request) (*queue.DispatchMessage, error)
}

type NotificationHandler struct {
	service NotificationService
	async   AsyncNotificationService
}

func NewNotificationHandler(svc NotificationService, async AsyncNotificationService) (*NotificationHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if async == nil {
		return nil, fmt.Errorf("async notification service is required")
	}
	return &NotificationHandler{service: svc, async: async}, nil
}

func RegisterNotificationRoutes(router fiber.Router, svc NotificationService, async AsyncNotificationService) error {
	h, err := NewNotificationHandler(svc, async)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.DispatchNotification)
	v1.Post("/notifications/async", h.EnqueueNotification)
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/stats", h.GetStats)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications/:id/attempts", h.ListAttempts)
	v1.Post("/notifications/:id/requeue", h.RequeueNotification)

	return nil
}

type dispatchRequest struct {
	UserID       *string         `json:"userId"`
	Channel      string          `json:"channel"`
	TemplateName string          `json:"templateName"`
	Recipient    string          `json:"recipient"`
	Params       template.Params `json:"params"`
}

type contentResponse struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

type notificationResponse struct {
	ID           string          `json:"id"`
	UserID       *string         `json:"userId,omitempty"`
	Channel      string          `json:"channel"`
	TemplateName string          `json:"templateName"`
	Recipient    string          `json:"recipient"`
	Content      contentResponse `json:"content"`
	Status       string          `json:"status"`
	SentAt       *time.Time      `json:"sentAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt,omitempty"`
}

type deliveryFailedResponse struct {
	Error        string               `json:"error"`
	Notification notificationResponse `json:"notification"`
}

type enqueueResponse struct {
	MessageID     string `json:"messageId"`
	CorrelationID string `json:"correlationId"`
	Channel       string `json:"channel"`
	Status        string `json:"status"`
}

type attemptResponse struct {
	ID                string    `json:"id"`
	AttemptNumber     int       `json:"attemptNumber"`
	Source            string    `json:"source"`
	Outcome           string    `json:"outcome"`
	StatusCode        *int      `json:"statusCode,omitempty"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	Error             *string   `json:"error,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type statsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// DispatchNotification sends synchronously. A provider rejection answers 502
// with the persisted failed record.
func (h *NotificationHandler) DispatchNotification(c *fiber.Ctx) error {
	req, err := parseDispatchRequest(c)
	if err != nil {
		return err
	}

	notification, err := h.service.Dispatch(c.UserContext(), req)
	if err != nil {
		var deliveryErr *service.DeliveryError
		if errors.As(err, &deliveryErr) {
			return c.Status(fiber.StatusBadGateway).JSON(deliveryFailedResponse{
				Error:        deliveryErr.Error(),
				Notification: toNotificationResponse(deliveryErr.Notification),
			})
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) EnqueueNotification(c *fiber.Ctx) error {
	req, err := parseDispatchRequest(c)
	if err != nil {
		return err
	}

	msg, err := h.async.Enqueue(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueResponse{
		MessageID:     msg.MessageID,
		CorrelationID: msg.CorrelationID,
		Channel:       msg.Channel.String(),
		Status:        "queued",
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	notification, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.service.Attempts(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	items := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, attemptResponse{
			ID:                a.ID,
			AttemptNumber:     a.AttemptNumber,
			Source:            string(a.Source),
			Outcome:           string(a.Outcome),
			StatusCode:        a.StatusCode,
			ProviderMessageID: a.ProviderMessageID,
			Error:             a.Error,
			CreatedAt:         a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *NotificationHandler) RequeueNotification(c *fiber.Ctx) error {
	notification, err := h.service.Requeue(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}

	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[status.String()] = count
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		Total:    stats.Total,
		ByStatus: byStatus,
	})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return err
	}

	notifications, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseDispatchRequest(c *fiber.Ctx) (service.Request, error) {
	var body dispatchRequest
	if err := c.BodyParser(&body); err != nil {
		return service.Request{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(body.Channel)
	if err != nil {
		return service.Request{}, err
	}

	return service.Request{
		UserID:       body.UserID,
		Channel:      channel,
		TemplateName: strings.TrimSpace(body.TemplateName),
		Recipient:    strings.TrimSpace(body.Recipient),
		Params:       body.Params,
	}, nil
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		params.UserID = &userID
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return repository.ListParams{}, fmt.Errorf("%w: from must not be after to", domain.ErrValidation)
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, toNotificationResponse(&notifications[i]))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:           n.ID,
		UserID:       n.UserID,
		Channel:      n.Channel.String(),
		TemplateName: n.TemplateName,
		Recipient:    n.Recipient,
		Content: contentResponse{
			Subject: n.Content.Subject,
			Body:    n.Content.Body,
		},
		Status:    n.Status.String(),
		SentAt:    n.SentAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
