package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact"
	"github.com/chronofact/chronofact/pkg/types"
)

// QueryHandler serves temporal queries and point-in-time diffs.
type QueryHandler struct {
	engine chronofact.Engine
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(engine chronofact.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// Query handles GET /query.
//
// Supported query params: at, from, to (RFC 3339), entity_id, topic,
// status (repeatable), limit.
func (h *QueryHandler) Query(c *gin.Context) {
	spec := types.QuerySpec{
		EntityID: c.Query("entity_id"),
		Topic:    c.Query("topic"),
	}

	var err error
	if spec.At, err = parseTimeParam(c, "at"); err != nil {
		badRequest(c, err)
		return
	}
	if spec.From, err = parseTimeParam(c, "from"); err != nil {
		badRequest(c, err)
		return
	}
	if spec.To, err = parseTimeParam(c, "to"); err != nil {
		badRequest(c, err)
		return
	}
	for _, s := range c.QueryArray("status") {
		spec.Statuses = append(spec.Statuses, types.FactStatus(s))
	}
	if raw := c.Query("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil {
			badRequest(c, fmt.Errorf("invalid limit %q", raw))
			return
		}
		spec.Limit = limit
	}

	results, err := h.engine.Query(c.Request.Context(), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": results, "count": len(results)})
}

// Diff handles GET /diff.
func (h *QueryHandler) Diff(c *gin.Context) {
	t1, err := requireTimeParam(c, "t1")
	if err != nil {
		badRequest(c, err)
		return
	}
	t2, err := requireTimeParam(c, "t2")
	if err != nil {
		badRequest(c, err)
		return
	}

	diff, err := h.engine.Diff(c.Request.Context(), t1, t2, c.Query("entity_id"), c.Query("topic"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, diff)
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: expected RFC 3339", name, raw)
	}
	return &t, nil
}

func requireTimeParam(c *gin.Context, name string) (time.Time, error) {
	t, err := parseTimeParam(c, name)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("missing required param %s", name)
	}
	return *t, nil
}
