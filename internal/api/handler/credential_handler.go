package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/api/dto"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/domain"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/session"
	"github.com/john-nxt1sports/Ai-resell-agent-sub002/internal/vault"
)

// CredentialHandler handles marketplace credential HTTP requests
type CredentialHandler struct {
	logger    *slog.Logger
	vault     *vault.Vault
	freshness *session.Freshness
}

// NewCredentialHandler creates a new CredentialHandler instance
func NewCredentialHandler(deps *Dependencies) *CredentialHandler {
	return &CredentialHandler{
		logger:    deps.Logger,
		vault:     deps.Vault,
		freshness: deps.Freshness,
	}
}

// CreateCredential handles POST /api/v1/credentials
// Stores password-class material hashed or session-class cookie jars
// encrypted, depending on which field the body carries
func (h *CredentialHandler) CreateCredential(c *gin.Context) {
	userID := callerID(c)

	var req dto.CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	hasPassword := req.Password != ""
	hasCookies := len(req.Cookies) > 0
	if hasPassword == hasCookies {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Exactly one of password or cookies is required",
		})
		return
	}

	var err error
	if hasPassword {
		err = h.vault.StorePassword(c.Request.Context(), userID, req.Marketplace, req.Username, req.Password)
	} else {
		err = h.vault.StoreSession(c.Request.Context(), userID, req.Marketplace, req.Cookies)
	}
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to store credential", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store credential",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"marketplace": req.Marketplace,
		"stored":      true,
	})
}

// ListCredentials handles GET /api/v1/credentials
// Returns metadata only; secret material never leaves the vault
func (h *CredentialHandler) ListCredentials(c *gin.Context) {
	userID := callerID(c)

	infos, err := h.vault.ListCredentials(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list credentials", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list credentials",
		})
		return
	}

	resp := dto.ListCredentialsResponse{
		Credentials: make([]dto.CredentialDTO, len(infos)),
	}
	for i, info := range infos {
		d := dto.CredentialDTO{
			ID:          info.ID,
			Marketplace: info.Marketplace,
			Kind:        info.Kind,
			Username:    info.Username,
			IsActive:    info.IsActive,
			UpdatedAt:   info.UpdatedAt.Format(time.RFC3339),
		}
		if info.LastUsed != nil {
			lastUsed := info.LastUsed.Format(time.RFC3339)
			d.LastUsed = &lastUsed
		}
		resp.Credentials[i] = d
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteCredential handles DELETE /api/v1/credentials/:credential_id
// Deactivates one credential by id, scoped to the owning user
func (h *CredentialHandler) DeleteCredential(c *gin.Context) {
	userID := callerID(c)

	credentialID, err := strconv.ParseInt(c.Param("credential_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "credential_id must be an integer",
		})
		return
	}

	if err := h.vault.DeactivateByID(c.Request.Context(), userID, credentialID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found"})
			return
		}
		h.logger.Error("Failed to deactivate credential", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to deactivate credential",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidateSession handles POST /api/v1/sessions/:marketplace/validate
// Runs an on-demand freshness check against the marketplace
func (h *CredentialHandler) ValidateSession(c *gin.Context) {
	userID := callerID(c)
	marketplace := c.Param("marketplace")

	valid, err := h.freshness.Validate(c.Request.Context(), userID, marketplace)
	if err != nil {
		h.logger.Error("Session validation failed",
			slog.String("marketplace", marketplace),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Session checker unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ValidateSessionResponse{
		Marketplace: marketplace,
		Valid:       valid,
	})
}
