// Package server exposes the storybook pipeline over HTTP.
package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fable/pkg/assets"
	"fable/pkg/flight"
	"fable/pkg/generate"
	"fable/pkg/story"
	"fable/pkg/store"
)

type Server struct {
	Echo      *echo.Echo
	Store     *store.Store
	Assets    *assets.Store
	Generator *generate.Generator
	Ctx       context.Context

	runs *flight.Cache[story.Brief, *story.Story]
}

func NewServer(ctx context.Context, st *store.Store, art *assets.Store, gen *generate.Generator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:      e,
		Store:     st,
		Assets:    art,
		Generator: gen,
		Ctx:       ctx,
	}
	// Identical briefs coalesce into one story record and one
	// generation run; the persisted record is the source of truth after
	// a minute.
	s.runs = flight.NewCache(time.Minute, s.runStory)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.GET("/styles", s.handleGetStyles)
	api.POST("/stories", s.handlePostStory)
	api.GET("/stories", s.handleListStories)
	api.GET("/stories/:id", s.handleGetStory)
	api.DELETE("/stories/:id", s.handleDeleteStory)
	api.GET("/stories/:id/pages/:page/image", s.handleGetPageImage)
	api.PATCH("/stories/:id/pages/:page", s.handlePatchPageText)
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
