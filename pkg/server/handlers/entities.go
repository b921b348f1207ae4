package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/server/dto"
	"github.com/chronofact/chronofact/pkg/types"
)

// EntityHandler exposes entity identity operations.
type EntityHandler struct {
	engine chronofact.Engine
}

// NewEntityHandler creates an entity handler.
func NewEntityHandler(engine chronofact.Engine) *EntityHandler {
	return &EntityHandler{engine: engine}
}

// Create handles POST /entities.
func (h *EntityHandler) Create(c *gin.Context) {
	var req dto.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entity, err := h.engine.CreateEntity(c.Request.Context(), req.Name, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entity)
}

// Resolve handles POST /entities/resolve.
func (h *EntityHandler) Resolve(c *gin.Context) {
	var req dto.ResolveEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entity, err := h.engine.ResolveEntity(c.Request.Context(), req.Mention, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// Get handles GET /entities/:id, following merge pointers.
func (h *EntityHandler) Get(c *gin.Context) {
	entity, err := h.engine.GetEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// AddAlias handles POST /entities/:id/aliases. Inadmissible aliases drop
// silently, so the response only confirms receipt.
func (h *EntityHandler) AddAlias(c *gin.Context) {
	var req dto.AddAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = types.AliasKindName
	}
	if err := h.engine.AddAlias(c.Request.Context(), c.Param("id"), req.Alias, kind); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Merge handles POST /entities/merge.
func (h *EntityHandler) Merge(c *gin.Context) {
	var req dto.MergeEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	survivor, err := h.engine.MergeEntities(c.Request.Context(), req.KeepID, req.MergeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, survivor)
}

// Timeline handles GET /entities/:id/timeline. Optional from/to query
// params restrict the range.
func (h *EntityHandler) Timeline(c *gin.Context) {
	from, err := parseTimeParam(c, "from")
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		badRequest(c, err)
		return
	}
	tl, err := h.engine.Timeline(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}
