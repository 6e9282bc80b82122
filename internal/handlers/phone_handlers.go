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

// PhoneHandlers contains the phone validation endpoint handlers
type PhoneHandlers struct {
	phoneService *services.PhoneValidationService
	logger       *logging.SafeLogger
}

// NewPhoneHandlers creates a new PhoneHandlers instance
func NewPhoneHandlers(phoneService *services.PhoneValidationService) *PhoneHandlers {
	return &PhoneHandlers{
		phoneService: phoneService,
		logger:       observability.Logger(),
	}
}

// RequestPhoneCode godoc
// @Summary Request a phone validation code
// @Description Sends a one-time validation code to the given phone number by SMS
// @Tags phone
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param data body models.PhoneCodeRequest true "Candidate phone number"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /person/{id}/phone/code [post]
func (h *PhoneHandlers) RequestPhoneCode(c *gin.Context) {
	personID := c.Param("id")

	var req models.PhoneCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	err := h.phoneService.RequestCode(c.Request.Context(), personID, req.PhoneNumber)
	if err != nil {
		h.respondRequestError(c, personID, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Validation code sent"})
}

func (h *PhoneHandlers) respondRequestError(c *gin.Context, personID string, err error) {
	switch {
	case errors.Is(err, services.ErrPersonNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Person not found"})
	case errors.Is(err, services.ErrAlreadyValidated):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Phone number already validated"})
	case errors.Is(err, services.ErrEmailNotValidated):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Email must be validated first"})
	case errors.Is(err, services.ErrAlreadyBeneficiary):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Account already holds the beneficiary role"})
	case errors.Is(err, services.ErrInvalidPhoneNumber):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid phone number"})
	case errors.Is(err, services.ErrPhoneDenied), errors.Is(err, services.ErrCountryNotAllowed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "This phone number cannot be used"})
	case errors.Is(err, services.ErrPhoneOwnedByBeneficiary):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "This phone number is already in use"})
	case errors.Is(err, services.ErrSendingLimitReached):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "Too many codes requested, try again later"})
	case errors.Is(err, services.ErrSMSSendFailed):
		h.logger.Error("sms dispatch failed", zap.String("person_id", personID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Could not send the code, try again later"})
	default:
		h.logger.Error("failed to request phone code", zap.String("person_id", personID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to request validation code"})
	}
}

// ValidatePhoneCode godoc
// @Summary Validate a phone code
// @Description Validates the code sent to the person's candidate phone number
// @Tags phone
// @Accept json
// @Produce json
// @Param id path string true "Person ID"
// @Param data body models.PhoneVerifyRequest true "Verification code"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} models.PhoneVerifyResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /person/{id}/phone/validate [post]
func (h *PhoneHandlers) ValidatePhoneCode(c *gin.Context) {
	personID := c.Param("id")

	var req models.PhoneVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	remaining, err := h.phoneService.VerifyCode(c.Request.Context(), personID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPersonNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Person not found"})
		case errors.Is(err, services.ErrAlreadyValidated):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Phone number already validated"})
		case errors.Is(err, services.ErrNoPendingValidation):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "No pending validation or code expired"})
		case errors.Is(err, services.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, models.PhoneVerifyResponse{
				Error:             "Invalid verification code",
				RemainingAttempts: &remaining,
			})
		case errors.Is(err, services.ErrAttemptsExhausted):
			zero := 0
			c.JSON(http.StatusBadRequest, models.PhoneVerifyResponse{
				Error:             "Verification attempts exhausted",
				RemainingAttempts: &zero,
			})
		default:
			h.logger.Error("failed to validate phone code", zap.String("person_id", personID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to validate code"})
		}
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Phone number validated successfully"})
}
