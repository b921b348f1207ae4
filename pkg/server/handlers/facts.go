package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/facts"
	"github.com/chronofact/chronofact/pkg/server/dto"
	"github.com/chronofact/chronofact/pkg/types"
)

// FactHandler exposes the fact lifecycle operations.
type FactHandler struct {
	engine chronofact.Engine
}

// NewFactHandler creates a fact handler.
func NewFactHandler(engine chronofact.Engine) *FactHandler {
	return &FactHandler{engine: engine}
}

// Record handles POST /facts.
func (h *FactHandler) Record(c *gin.Context) {
	var req dto.RecordFactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := facts.CreateInput{
		Text:       req.Text,
		ValidAt:    req.ValidAt,
		InvalidAt:  req.InvalidAt,
		Confidence: req.Confidence,
	}
	for _, m := range req.Mentions {
		role := m.Role
		if role == "" {
			role = types.RoleSubject
		}
		in.Mentions = append(in.Mentions, &types.EntityMention{
			EntityID:   m.EntityID,
			Text:       m.Text,
			Role:       role,
			Confidence: m.Confidence,
		})
	}
	if req.SourceID != "" {
		in.Sources = append(in.Sources, &types.FactSource{
			SourceID:   req.SourceID,
			Kind:       types.SourcePrimary,
			Excerpt:    req.Excerpt,
			Confidence: req.Confidence,
		})
	}

	fact, created, err := h.engine.RecordFact(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.RecordFactResponse{Fact: fact, Created: created})
}

// Get handles GET /facts/:id.
func (h *FactHandler) Get(c *gin.Context) {
	fact, err := h.engine.GetFact(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fact)
}

// Supersede handles POST /facts/:id/supersede.
func (h *FactHandler) Supersede(c *gin.Context) {
	var req dto.SupersedeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fact, err := h.engine.Supersede(c.Request.Context(), c.Param("id"), req.NewText, req.ValidAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fact)
}

// Corroborate handles POST /facts/:id/corroborate.
func (h *FactHandler) Corroborate(c *gin.Context) {
	var req dto.CorroborateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fact, err := h.engine.Corroborate(c.Request.Context(), c.Param("id"), req.CorroboratingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fact)
}

// Invalidate handles POST /facts/:id/invalidate.
func (h *FactHandler) Invalidate(c *gin.Context) {
	var req dto.InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fact, err := h.engine.Invalidate(c.Request.Context(), c.Param("id"), req.At)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fact)
}

// Synthesize handles POST /facts/synthesize.
func (h *FactHandler) Synthesize(c *gin.Context) {
	var req dto.SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fact, err := h.engine.Synthesize(c.Request.Context(), req.Text, req.ValidAt, req.DerivedFromIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fact)
}

// Conflicts handles GET /conflicts.
func (h *FactHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.engine.FindConflicts(c.Request.Context(), c.Query("entity_id"), c.Query("topic"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts, "count": len(conflicts)})
}

// ResolveConflict handles POST /conflicts/resolve.
func (h *FactHandler) ResolveConflict(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.engine.ResolveConflict(c.Request.Context(), req.KeepID, req.SupersedeIDs, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
