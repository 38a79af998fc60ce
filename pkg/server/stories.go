package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"fable/pkg/generate"
	"fable/pkg/policy"
	"fable/pkg/story"
	"fable/pkg/store"
)

// POST /api/stories: validate the brief, then run the full generation
// pipeline before answering. Requests carrying an identical brief
// coalesce into one story record and one run; distinct briefs run
// concurrently on their own requests.
func (s *Server) handlePostStory(c echo.Context) error {
	var brief story.Brief
	if err := c.Bind(&brief); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := brief.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// The server's base context, not the request's: a client disconnect
	// should not abort a half-generated story mid-page.
	done, err := s.runs.Get(s.Ctx, brief)
	if err != nil {
		var pageErr *generate.PageError
		if errors.As(err, &pageErr) {
			return echo.NewHTTPError(http.StatusBadGateway,
				fmt.Sprintf("generation failed on page %d: %v", pageErr.Page, pageErr.Err))
		}
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed: "+err.Error())
	}

	return c.JSON(http.StatusCreated, done)
}

// runStory is the flight work function: one execution per brief. It
// creates the record, persists each status transition, and runs the
// pipeline. Failed runs are not cached, so a retry starts fresh.
func (s *Server) runStory(ctx context.Context, brief story.Brief) (*story.Story, error) {
	st := story.New(brief)
	if err := s.Store.CreateStory(ctx, st); err != nil {
		log.Error("creating story record", "error", err)
		return nil, err
	}
	if err := s.Store.UpdateStatus(ctx, st.ID, story.StatusInProgress, 0, ""); err != nil {
		log.Error("recording in-progress status", "story", st.ID, "error", err)
		return nil, err
	}
	log.Info("generation starting", "story", st.ID, "title", brief.Title,
		"pages", brief.PageCount, "age", brief.AgeRange, "style", brief.ArtStyle)

	if runErr := s.Generator.Run(ctx, st); runErr != nil {
		if serr := s.Store.UpdateStatus(ctx, st.ID, story.StatusFailed, st.FailedAt, st.Error); serr != nil {
			log.Error("recording failure status", "story", st.ID, "error", serr)
		}
		log.Error("generation failed", "story", st.ID, "error", runErr)
		return nil, runErr
	}

	if err := s.Store.SaveResult(ctx, st); err != nil {
		log.Error("persisting story result", "story", st.ID, "error", err)
		return nil, err
	}
	log.Info("generation complete", "story", st.ID, "pages", len(st.Pages), "entities", len(st.Entities))
	return st, nil
}

// GET /api/stories
func (s *Server) handleListStories(c echo.Context) error {
	stories, err := s.Store.ListStories(c.Request().Context())
	if err != nil {
		log.Error("listing stories", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list stories")
	}
	if stories == nil {
		stories = []*story.Story{}
	}
	return c.JSON(http.StatusOK, stories)
}

// GET /api/stories/:id
func (s *Server) handleGetStory(c echo.Context) error {
	st, err := s.Store.GetStory(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "story not found")
	}
	if err != nil {
		log.Error("loading story", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load story")
	}
	return c.JSON(http.StatusOK, st)
}

// DELETE /api/stories/:id
func (s *Server) handleDeleteStory(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	// The brief keys the coalescing cache; load it before the row goes.
	st, err := s.Store.GetStory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "story not found")
	}
	if err != nil {
		log.Error("loading story for delete", "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete story")
	}

	if err := s.Store.DeleteStory(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "story not found")
		}
		log.Error("deleting story", "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete story")
	}
	if err := s.Assets.DeleteStory(id); err != nil {
		log.Warn("deleting story artifacts", "id", id, "error", err)
	}
	s.runs.Delete(st.Brief)
	return c.NoContent(http.StatusNoContent)
}

// GET /api/styles lists the configuration surface a client wizard consumes.
func (s *Server) handleGetStyles(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"age_ranges":  policy.KnownAgeRanges(),
		"art_styles":  policy.KnownStyles(),
		"color_modes": []story.ColorMode{story.ColorModeColor, story.ColorModeMonochrome},
		"max_pages":   story.MaxPages,
	})
}
