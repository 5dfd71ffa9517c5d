package controllers

import (
	"context"

	"memorymaze/backend/ai"
	"memorymaze/backend/middleware"

	"github.com/gofiber/fiber/v2"
)

// Assistant is the reading assistant behind the chat routes.
type Assistant interface {
	Chat(ctx context.Context, email, message string, history []ai.Message) (*ai.ChatReply, error)
	Recommend(ctx context.Context, email string, prefs ai.Preferences) ([]ai.Recommendation, error)
}

type ChatController struct {
	Assistant Assistant
}

func NewChatController(assistant Assistant) *ChatController {
	return &ChatController{Assistant: assistant}
}

type chatRequest struct {
	Message             string       `json:"message"`
	ConversationHistory []ai.Message `json:"conversationHistory"`
}

// SendMessage godoc
// @Summary Chat with the reading assistant
// @Tags chat
// @Accept json
// @Produce json
// @Param request body chatRequest true "Message and prior turns"
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 429 {object} utils.ErrorResponse
// @Failure 503 {object} utils.ErrorResponse
// @Router /chat/message [post]
func (cc *ChatController) SendMessage(c *fiber.Ctx) error {
	var input chatRequest
	if err := parseBody(c, &input); err != nil {
		return err
	}
	reply, err := cc.Assistant.Chat(c.UserContext(), middleware.CurrentEmail(c), input.Message, input.ConversationHistory)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"response": reply.Response,
		"model":    reply.Model,
	})
}

// GetRecommendations godoc
// @Summary Suggest books from the library
// @Tags chat
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} utils.ErrorResponse
// @Failure 503 {object} utils.ErrorResponse
// @Router /chat/recommendations [post]
func (cc *ChatController) GetRecommendations(c *fiber.Ctx) error {
	var input struct {
		Preferences ai.Preferences `json:"preferences"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &input); err != nil {
			return err
		}
	}
	recs, err := cc.Assistant.Recommend(c.UserContext(), middleware.CurrentEmail(c), input.Preferences)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "recommendations": recs})
}
