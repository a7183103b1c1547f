package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contaixt-gateway/internal/app"
	"contaixt-gateway/internal/platform/logger"
	"contaixt-gateway/internal/transport/http/response"
)

type VaultHandler struct {
	vaults *app.VaultService
	log    *logger.Logger
}

type CreateVaultRequest struct {
	Name        string  `json:"name" binding:"required,max=128"`
	Description *string `json:"description" binding:"omitempty,max=1024"`
}

type UpdateVaultRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=128"`
	Description *string `json:"description" binding:"omitempty,max=1024"`
}

type SetConnectionsRequest struct {
	ConnectionIDs []string `json:"connection_ids"`
}

func NewVaultHandler(vaults *app.VaultService, log *logger.Logger) *VaultHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &VaultHandler{vaults: vaults, log: log}
}

func (h *VaultHandler) List(c *gin.Context) {
	workspaceID, ok := workspaceOrAbort(c)
	if !ok {
		return
	}
	vaults, err := h.vaults.List(c.Request.Context(), workspaceID)
	if err != nil {
		writeServiceError(c, h.log, err, "list vaults failed")
		return
	}
	response.OK(c, vaults)
}

func (h *VaultHandler) Create(c *gin.Context) {
	workspaceID, ok := workspaceOrAbort(c)
	if !ok {
		return
	}
	var req CreateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	vault, err := h.vaults.Create(c.Request.Context(), app.CreateVaultInput{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(c, h.log, err, "create vault failed")
		return
	}
	response.OK(c, vault)
}

func (h *VaultHandler) Update(c *gin.Context) {
	var req UpdateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	vault, err := h.vaults.Update(c.Request.Context(), c.Param("id"), app.UpdateVaultInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(c, h.log, err, "update vault failed")
		return
	}
	response.OK(c, vault)
}

func (h *VaultHandler) Delete(c *gin.Context) {
	vaultID := c.Param("id")
	if err := h.vaults.Delete(c.Request.Context(), vaultID); err != nil {
		writeServiceError(c, h.log, err, "delete vault failed")
		return
	}
	response.OK(c, gin.H{"deleted_vault_id": vaultID})
}

func (h *VaultHandler) ListConnections(c *gin.Context) {
	conns, err := h.vaults.Connections(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.log, err, "list vault connections failed")
		return
	}
	response.OK(c, conns)
}

func (h *VaultHandler) SetConnections(c *gin.Context) {
	var req SetConnectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	out, err := h.vaults.SetConnections(c.Request.Context(), c.Param("id"), req.ConnectionIDs)
	if err != nil {
		writeServiceError(c, h.log, err, "set vault connections failed")
		return
	}
	response.OK(c, out)
}
