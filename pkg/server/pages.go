package server

import (
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
)

// GET /api/stories/:id/pages/:page/image
func (s *Server) handleGetPageImage(c echo.Context) error {
	id := c.Param("id")
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid page number")
	}

	data, err := s.Assets.ReadPage(id, page)
	if err != nil {
		if os.IsNotExist(err) {
			return echo.NewHTTPError(http.StatusNotFound, "page image not found")
		}
		log.Error("reading page artifact", "story", id, "page", page, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read image")
	}

	return c.Blob(http.StatusOK, "image/webp", data)
}
