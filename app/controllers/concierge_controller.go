package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/internal/pkg/concierge"
	"github.com/hangarlinks/hangarlinks/internal/pkg/insights"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
)

const maxConciergeMessage = 1000

type ConciergeController struct {
	concierge *concierge.Concierge
}

func NewConciergeController(c *concierge.Concierge) *ConciergeController {
	return &ConciergeController{concierge: c}
}

type chatRequest struct {
	Message string `json:"message" form:"message"`
}

func chatMessage(c *fiber.Ctx) string {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return ""
	}
	return truncateRunes(strings.TrimSpace(req.Message), maxConciergeMessage)
}

// HandleLegacyChat answers the floating chat widget.
func (cc *ConciergeController) HandleLegacyChat(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"response": concierge.LegacyChat(chatMessage(c))})
}

// HandleConcierge answers from live listing data.
func (cc *ConciergeController) HandleConcierge(c *fiber.Ctx) error {
	msg := chatMessage(c)
	if msg == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"reply": concierge.EmptyReply})
	}
	uc := usercontext.GetUserContext(c)
	reply, err := cc.concierge.Answer(concierge.Asker{UserID: uc.UserID, Role: uc.Role}, msg)
	if err != nil {
		log.Errorf("[Concierge] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"reply": "Sorry, I couldn't look that up right now. Please try again.",
		})
	}
	return c.JSON(reply)
}

func (cc *ConciergeController) HandleForecast(c *fiber.Ctx) error {
	return c.JSON(insights.NewForecast(nil))
}
