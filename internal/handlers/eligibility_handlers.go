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

// EligibilityHandlers contains eligibility and fraud-ledger endpoint handlers
type EligibilityHandlers struct {
	resolver *services.EligibilityResolver
	ledger   *services.FraudCheckLedger
	logger   *logging.SafeLogger
}

// NewEligibilityHandlers creates a new EligibilityHandlers instance
func NewEligibilityHandlers(resolver *services.EligibilityResolver, ledger *services.FraudCheckLedger) *EligibilityHandlers {
	return &EligibilityHandlers{
		resolver: resolver,
		ledger:   ledger,
		logger:   observability.Logger(),
	}
}

// GetEligibility godoc
// @Summary Resolve a person's eligibility tier
// @Description Re-derives the person's tier from the age-window rules and the fraud-check ledger
// @Tags eligibility
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {object} models.TierDecision
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /person/{id}/eligibility [get]
func (h *EligibilityHandlers) GetEligibility(c *gin.Context) {
	personID := c.Param("id")

	tier, err := h.resolver.CurrentTier(c.Request.Context(), personID)
	if err != nil {
		if errors.Is(err, services.ErrPersonNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Person not found"})
			return
		}
		h.logger.Error("failed to resolve eligibility", zap.String("person_id", personID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to resolve eligibility"})
		return
	}

	c.JSON(http.StatusOK, models.DecisionFor(tier))
}

// ListFraudChecks godoc
// @Summary List a person's fraud checks
// @Description Returns the full fraud-check ledger for a person, newest first
// @Tags eligibility
// @Produce json
// @Param id path string true "Person ID"
// @Success 200 {array} models.FraudCheck
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /person/{id}/fraud-checks [get]
func (h *EligibilityHandlers) ListFraudChecks(c *gin.Context) {
	personID := c.Param("id")

	checks, err := h.ledger.ListByPerson(c.Request.Context(), personID)
	if err != nil {
		h.logger.Error("failed to list fraud checks", zap.String("person_id", personID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list fraud checks"})
		return
	}
	if checks == nil {
		checks = []models.FraudCheck{}
	}

	c.JSON(http.StatusOK, checks)
}

// PostReview godoc
// @Summary Append a manual fraud review
// @Description Records an administrative override; the latest review wins for eligibility gating
// @Tags eligibility
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param data body models.FraudReviewRequest true "Review outcome"
// @Success 200 {object} models.TierDecision
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /person/{id}/review [post]
func (h *EligibilityHandlers) PostReview(c *gin.Context) {
	personID := c.Param("id")

	var req models.FraudReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	outcome := models.FraudCheckStatus(req.Outcome)
	if outcome != models.CheckStatusOK && outcome != models.CheckStatusKO {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Review outcome must be OK or KO"})
		return
	}

	review := &models.FraudReview{
		PersonID: personID,
		Reviewer: req.Reviewer,
		Outcome:  outcome,
		Detail:   req.Detail,
	}
	if err := h.ledger.AppendReview(c.Request.Context(), review); err != nil {
		h.logger.Error("failed to append review", zap.String("person_id", personID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to append review"})
		return
	}

	// The review may flip the gate; return the freshly resolved tier.
	tier, err := h.resolver.CurrentTier(c.Request.Context(), personID)
	if err != nil {
		if errors.Is(err, services.ErrPersonNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Person not found"})
			return
		}
		h.logger.Error("failed to resolve eligibility after review", zap.String("person_id", personID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to resolve eligibility"})
		return
	}

	c.JSON(http.StatusOK, models.DecisionFor(tier))
}
