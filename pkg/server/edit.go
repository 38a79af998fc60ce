package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aryann/difflib"
	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"fable/pkg/store"
)

type editPageReq struct {
	Text string `json:"text"`
}

type wordDelta struct {
	Op   string `json:"op"` // "=", "-", "+"
	Text string `json:"text"`
}

type editAudit struct {
	ID        string      `json:"id"`
	Story     string      `json:"story"`
	Page      int         `json:"page"`
	Deltas    []wordDelta `json:"deltas"`
	EditedAt  string      `json:"edited_at"`
	Unchanged bool        `json:"unchanged"`
}

// PATCH /api/stories/:id/pages/:page is a manual narrative edit. The
// illustration is untouched; only the text changes, and the response
// carries a word-level diff for the caller's audit trail.
func (s *Server) handlePatchPageText(c echo.Context) error {
	id := c.Param("id")
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page number")
	}

	var req editPageReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	ctx := c.Request().Context()
	st, err := s.Store.GetStory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "story not found")
	}
	if err != nil {
		log.Error("loading story for edit", "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load story")
	}

	var original string
	found := false
	for _, p := range st.Pages {
		if p.PageNumber == page {
			original = p.Text
			found = true
			break
		}
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "page not found")
	}

	if err := s.Store.UpdatePageText(ctx, id, page, req.Text); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "page not found")
		}
		log.Error("updating page text", "id", id, "page", page, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update page")
	}

	audit := editAudit{
		ID:        ksuid.New().String(),
		Story:     id,
		Page:      page,
		Deltas:    diffWords(original, req.Text),
		EditedAt:  time.Now().UTC().Format(time.RFC3339),
		Unchanged: original == req.Text,
	}
	log.Info("page text edited", "story", id, "page", page, "deltas", len(audit.Deltas))

	return c.JSON(http.StatusOK, audit)
}

func diffWords(a, b string) []wordDelta {
	recs := difflib.Diff(strings.Fields(a), strings.Fields(b))
	out := make([]wordDelta, 0, len(recs))
	for _, r := range recs {
		switch r.Delta {
		case difflib.Common:
			out = append(out, wordDelta{Op: "=", Text: r.Payload})
		case difflib.LeftOnly:
			out = append(out, wordDelta{Op: "-", Text: r.Payload})
		case difflib.RightOnly:
			out = append(out, wordDelta{Op: "+", Text: r.Payload})
		}
	}
	return out
}
