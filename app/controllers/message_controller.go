package controllers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/app/models"
	"github.com/hangarlinks/hangarlinks/app/repository"
	"github.com/hangarlinks/hangarlinks/internal/pkg/usercontext"
	"github.com/hangarlinks/hangarlinks/internal/pkg/viewmodel"
)

const maxMessageLength = 5000

type MessageController struct {
	repos *repository.Repositories
}

func NewMessageController(repos *repository.Repositories) *MessageController {
	return &MessageController{repos: repos}
}

// HandleInbox lists conversations, premium partners first, then newest.
func (mc *MessageController) HandleInbox(c *fiber.Ctx) error {
	conversations, err := mc.repos.Message.Conversations(usercontext.GetUserID(c))
	if err != nil {
		return handleRepoError(c, "Messages", err)
	}
	sortConversations(conversations)
	return render(c, "messages/index", "Messages", fiber.Map{"Conversations": conversations})
}

func sortConversations(cs []models.Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		pi, pj := cs[i].Partner.HasPremium(), cs[j].Partner.HasPremium()
		if pi != pj {
			return pi
		}
		return cs[i].LastMessage.CreatedAt.After(cs[j].LastMessage.CreatedAt)
	})
}

func (mc *MessageController) HandleThread(c *fiber.Ctx) error {
	partnerID, ok := paramID(c, "user_id")
	if !ok {
		return notFound(c)
	}
	partner, err := mc.repos.User.GetByID(partnerID)
	if err != nil {
		return handleRepoError(c, "Messages", err)
	}
	uid := usercontext.GetUserID(c)

	if c.Method() == fiber.MethodPost {
		content := strings.TrimSpace(c.FormValue("content"))
		listingID := optionalUint(c.FormValue("listing_id"))
		threadURL := fmt.Sprintf("/message/%d", partner.ID)
		if listingID != nil {
			threadURL += fmt.Sprintf("?listing_id=%d", *listingID)
		}
		if content == "" {
			return redirectError(c, "Message can't be empty.", threadURL)
		}
		content = truncateRunes(content, maxMessageLength)
		msg := &models.Message{SenderID: &uid, ReceiverID: partner.ID, ListingID: listingID, Content: content}
		if err := mc.repos.Message.Create(msg); err != nil {
			return handleRepoError(c, "Messages", err)
		}
		return redirectSuccess(c, "Message sent!", threadURL)
	}

	messages, err := mc.repos.Message.Thread(uid, partner.ID)
	if err != nil {
		return handleRepoError(c, "Messages", err)
	}
	if err := mc.repos.Message.MarkThreadRead(uid, partner.ID); err != nil {
		log.Warnf("[Messages] mark thread %d->%d read: %v", partner.ID, uid, err)
	}

	data := fiber.Map{
		"Partner":  partner,
		"Messages": viewmodel.NewThread(uid, messages),
	}
	if listingID := optionalUint(c.Query("listing_id")); listingID != nil {
		if listing, err := mc.repos.Listing.GetByID(*listingID); err == nil {
			data["Listing"] = listing
			data["ListingID"] = listing.ID
		}
	}
	return render(c, "messages/thread", "Conversation with "+partner.Username, data)
}

// HandleBookViewing sends the owner a viewing request.
func (mc *MessageController) HandleBookViewing(c *fiber.Ctx) error {
	listing, err := mc.listing(c)
	if err != nil {
		return handleRepoError(c, "Messages", err)
	}
	detailURL := fmt.Sprintf("/listing/%d", listing.ID)
	uid := usercontext.GetUserID(c)
	if uid == listing.OwnerID {
		return redirectError(c, "This is your own listing.", detailURL)
	}

	date := strings.TrimSpace(c.FormValue("viewing_date"))
	at := strings.TrimSpace(c.FormValue("viewing_time"))
	if at == "" {
		at = "Anytime"
	}
	if optionalDate(date) == nil {
		return redirectError(c, "Please pick a viewing date.", detailURL)
	}
	msg := &models.Message{
		SenderID:   &uid,
		ReceiverID: listing.OwnerID,
		ListingID:  &listing.ID,
		Content:    fmt.Sprintf("Hi, I'd like to book a viewing for your hangar at %s on %s at %s.", listing.AirportICAO, date, at),
	}
	if err := mc.repos.Message.Create(msg); err != nil {
		return handleRepoError(c, "Messages", err)
	}
	return redirectSuccess(c, "Viewing request sent to owner!", detailURL)
}

// HandleContactGuest lets visitors without an account write to the owner.
// Logged-in users go to the regular thread.
func (mc *MessageController) HandleContactGuest(c *fiber.Ctx) error {
	listing, err := mc.listing(c)
	if err != nil {
		return handleRepoError(c, "Messages", err)
	}
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(fmt.Sprintf("/message/%d?listing_id=%d", listing.OwnerID, listing.ID), fiber.StatusSeeOther)
	}

	detailURL := fmt.Sprintf("/listing/%d", listing.ID)
	email := strings.TrimSpace(c.FormValue("guest_email"))
	content := strings.TrimSpace(c.FormValue("message"))
	if email == "" || content == "" {
		return redirectError(c, "Email and message are required", detailURL)
	}
	if err := validate.Var(email, "email,max=120"); err != nil {
		return redirectError(c, "Please enter a valid email address.", detailURL)
	}
	content = truncateRunes(content, maxMessageLength)
	msg := &models.Message{
		ReceiverID: listing.OwnerID,
		ListingID:  &listing.ID,
		Content:    fmt.Sprintf("[GUEST: %s] %s", email, content),
		IsGuest:    true,
		GuestEmail: email,
	}
	if err := mc.repos.Message.Create(msg); err != nil {
		return handleRepoError(c, "Messages", err)
	}
	return redirectSuccess(c, "Message sent! The owner will reply to your email.", detailURL)
}

func (mc *MessageController) listing(c *fiber.Ctx) (*models.Listing, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, errNotFound
	}
	return mc.repos.Listing.GetByID(id)
}
