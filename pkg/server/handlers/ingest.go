package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/pipeline"
	"github.com/chronofact/chronofact/pkg/server/dto"
)

// IngestHandler runs extraction and batch ingestion over HTTP.
type IngestHandler struct {
	engine chronofact.Engine
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(engine chronofact.Engine) *IngestHandler {
	return &IngestHandler{engine: engine}
}

// Text handles POST /ingest/text.
func (h *IngestHandler) Text(c *gin.Context) {
	var req dto.IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	refTime := time.Now().UTC()
	if req.RefTime != nil {
		refTime = *req.RefTime
	}

	results, err := h.engine.IngestText(c.Request.Context(), req.SourceID, req.Text, refTime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIngestResponse(results))
}

// Drafts handles POST /ingest/drafts.
func (h *IngestHandler) Drafts(c *gin.Context) {
	var req dto.IngestDraftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	results := h.engine.IngestDrafts(c.Request.Context(), req.Drafts)
	c.JSON(http.StatusOK, toIngestResponse(results))
}

func toIngestResponse(results []pipeline.Result) dto.IngestResponse {
	resp := dto.IngestResponse{Total: len(results)}
	for _, r := range results {
		item := dto.IngestResultItem{
			Index:   r.Index,
			Fact:    r.Fact,
			Created: r.Created,
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}
