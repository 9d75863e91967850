package handlers_contact

import (
	"net/http"
	"portfolio/internal/models/pfcontacts"
	"portfolio/internal/pflog"
	"portfolio/internal/pfmetrics"
	"portfolio/internal/pfmiddleware"

	"github.com/gin-gonic/gin"
)

const successMessage = "Thanks for reaching out! I'll get back to you soon."

type ContactHandler struct {
	store pfcontacts.Store
}

func NewContactHandler(store pfcontacts.Store) *ContactHandler {
	return &ContactHandler{store: store}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Submit valide et enregistre un message du formulaire de contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	contact, err := pfcontacts.New(req.Name, req.Email, req.Message, pfmiddleware.UserAgent(c), pfmiddleware.ClientIP(c))
	if err != nil {
		if ve, ok := pfcontacts.IsValidationError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Create(ctx, contact); err != nil {
		pflog.Ctx(ctx).Error().Err(err).Msg("Contact form error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	pfmetrics.ContactSubmissions.Inc()
	pflog.Ctx(ctx).Info().Uint("id", contact.ID).Msg("New contact submission")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": successMessage,
		"id":      contact.ID,
	})
}
