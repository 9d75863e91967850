package handlers_admin

import (
	"net/http"
	"portfolio/internal/models/pfcontacts"
	"portfolio/internal/pflog"

	"github.com/gin-gonic/gin"
)

type ContactsHandler struct {
	store pfcontacts.Store
}

func NewContactsHandler(store pfcontacts.Store) *ContactsHandler {
	return &ContactsHandler{store: store}
}

// ListContacts retourne tous les contacts, du plus récent au plus ancien, avec les compteurs
func (h *ContactsHandler) ListContacts(c *gin.Context) {
	ctx := c.Request.Context()

	contacts, err := h.store.List(ctx)
	if err != nil {
		pflog.Ctx(ctx).Error().Err(err).Msg("Admin contacts fetch error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contacts"})
		return
	}

	stats, err := h.store.Stats(ctx)
	if err != nil {
		pflog.Ctx(ctx).Error().Err(err).Msg("Admin contacts stats error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contacts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"contacts": contacts,
		"stats":    stats,
	})
}
