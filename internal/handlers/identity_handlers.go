package handlers

import (
	"errors"
	"net/http"

	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"github.com/culturepass/eligibility-engine/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdentityHandlers contains the identity-check callback handlers
type IdentityHandlers struct {
	identityService *services.IdentityCheckService
	logger          *logging.SafeLogger
}

// NewIdentityHandlers creates a new IdentityHandlers instance
func NewIdentityHandlers(identityService *services.IdentityCheckService) *IdentityHandlers {
	return &IdentityHandlers{
		identityService: identityService,
		logger:          observability.Logger(),
	}
}

// IdentityCallbackResponse is the callback processing outcome
type IdentityCallbackResponse struct {
	Items    []models.FraudItem  `json:"items"`
	Decision models.TierDecision `json:"decision"`
}

// PostIdentityCallback godoc
// @Summary Ingest an identity-check callback
// @Description Normalizes a verifier callback, records the outcome to the fraud ledger and recomputes the person's tier
// @Tags identity
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param data body models.IdentityCheckCallback true "Verifier callback payload"
// @Success 200 {object} IdentityCallbackResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /person/{id}/identity-check/callback [post]
func (h *IdentityHandlers) PostIdentityCallback(c *gin.Context) {
	personID := c.Param("id")

	var callback models.IdentityCheckCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	items, decision, err := h.identityService.ProcessCallback(c.Request.Context(), personID, &callback)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPersonNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Person not found"})
		case errors.Is(err, services.ErrUnknownProtocol):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown provider protocol version"})
		default:
			h.logger.Error("failed to process identity callback",
				zap.String("person_id", personID),
				zap.String("third_party_id", callback.IdentificationID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to process identity callback"})
		}
		return
	}

	c.JSON(http.StatusOK, IdentityCallbackResponse{Items: items, Decision: decision})
}
