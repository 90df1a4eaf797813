package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/domain"
	"github.com/fathima-sithara/messaging-service/internal/service"
	"github.com/fathima-sithara/messaging-service/internal/storage"
)

// Uploader is the file-storage collaborator seam. The upload must complete
// durably before any message referencing the file is persisted.
type Uploader interface {
	Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*storage.Object, error)
}

// Deliverer is the send/edit fan-out path (ws.Delivery in production).
type Deliverer interface {
	Deliver(ctx context.Context, in service.SendInput) (*domain.Message, error)
	NotifyEdited(ctx context.Context, msg *domain.Message)
}

type Handlers struct {
	svc      *service.MessageService
	delivery Deliverer
	uploader Uploader
	maxBytes int64
	log      *zap.SugaredLogger
}

func NewHandlers(svc *service.MessageService, delivery Deliverer, uploader Uploader, maxBytes int64, log *zap.SugaredLogger) *Handlers {
	return &Handlers{svc: svc, delivery: delivery, uploader: uploader, maxBytes: maxBytes, log: log}
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	senderID := c.Locals("user_id").(string)

	in := service.SendInput{SenderID: senderID}

	if fileHeader, err := c.FormFile("file"); err == nil {
		in.ReceiverID = c.FormValue("receiverId")
		in.Content = c.FormValue("content")
		if in.Content == "" {
			in.Content = fileHeader.Filename
		}

		// Reject oversize uploads before reading the body or touching the
		// store; a failed upload never produces a persisted message.
		if err := storage.CheckSize(fileHeader.Size, h.maxBytes); err != nil {
			return fail(c, fiber.StatusBadRequest, "Error sending message", err)
		}

		f, err := fileHeader.Open()
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Error sending message", err)
		}
		defer f.Close()
		data := make([]byte, fileHeader.Size)
		if _, err := io.ReadFull(f, data); err != nil {
			return fail(c, fiber.StatusBadRequest, "Error sending message", err)
		}

		ct := fileHeader.Header.Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(data)
		}

		obj, err := h.uploader.Upload(c.Context(), senderID, fileHeader.Filename, ct, data)
		if err != nil {
			status := fiber.StatusBadGateway
			if errors.Is(err, domain.ErrUploadTooLarge) {
				status = fiber.StatusBadRequest
			}
			return fail(c, status, "Error sending message", err)
		}
		in.Type = obj.Type
		in.FileURL = obj.URL
		in.FileSize = obj.Size
	} else {
		var body struct {
			ReceiverID string `json:"receiverId"`
			Content    string `json:"content"`
			Type       string `json:"type"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fail(c, fiber.StatusBadRequest, "Error sending message", err)
		}
		in.ReceiverID = body.ReceiverID
		in.Content = body.Content
		in.Type = body.Type
	}

	msg, err := h.delivery.Deliver(c.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fail(c, fiber.StatusBadRequest, "Error sending message", err)
		}
		return fail(c, fiber.StatusInternalServerError, "Error sending message", err)
	}
	return success(c, "Message sent successfully", msg)
}

func (h *Handlers) getMessages(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	otherID := c.Params("otherUserId")

	msgs, err := h.svc.Thread(c.Context(), userID, otherID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fail(c, fiber.StatusBadRequest, "Error retrieving messages", err)
		}
		return fail(c, fiber.StatusInternalServerError, "Error retrieving messages", err)
	}
	return success(c, "Messages retrieved successfully", msgs)
}

func (h *Handlers) getConversations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	convs, err := h.svc.Conversations(c.Context(), userID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Error retrieving conversations", err)
	}
	return success(c, "Conversations retrieved successfully", convs)
}

func (h *Handlers) editMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	messageID := c.Params("messageId")

	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Error editing message", err)
	}

	msg, err := h.svc.Edit(c.Context(), messageID, userID, body.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			return fail(c, fiber.StatusBadRequest, "Error editing message", err)
		case errors.Is(err, domain.ErrNotFound):
			return fail(c, fiber.StatusNotFound, "Message not found", err)
		case errors.Is(err, domain.ErrForbidden):
			// Potential abuse signal: someone tried to edit another
			// sender's message.
			h.log.Warnw("rejected edit by non-owner", "message_id", messageID, "editor_id", userID)
			return fail(c, fiber.StatusForbidden, "Cannot edit another user's message", err)
		default:
			return fail(c, fiber.StatusInternalServerError, "Error editing message", err)
		}
	}

	h.delivery.NotifyEdited(c.Context(), msg)
	return success(c, "Message edited successfully", msg)
}
