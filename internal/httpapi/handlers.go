package httpapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/model"
)

func (s *Server) bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return c.Validate(req)
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if c.Request().ContentLength != 0 {
		if err := s.bindValid(c, &req); err != nil {
			return err
		}
	}
	if req.Width == 0 && req.Height == 0 {
		req.Width, req.Height = s.defaultWidth, s.defaultHeight
	}

	sess, err := s.registry.Create(c.Request().Context(), req.Width, req.Height)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createSessionResponse{
		ID:    sess.ID(),
		Scene: render.Build(sess.Snapshot(), s.store),
	})
}

func (s *Server) getScene(c echo.Context) error {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.Build(sess.Snapshot(), s.store))
}

func (s *Server) postEvent(c echo.Context) error {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return err
	}
	var req eventRequest
	if err := s.bindValid(c, &req); err != nil {
		return err
	}
	ev, err := req.toEvent()
	if err != nil {
		return err
	}
	vs, err := sess.Apply(c.Request().Context(), ev)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.Build(vs, s.store))
}

func (s *Server) getSVG(c echo.Context) error {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "image/svg+xml")
	c.Response().WriteHeader(http.StatusOK)
	return render.WriteSVG(c.Response(), render.Build(sess.Snapshot(), s.store))
}

func (s *Server) deleteSession(c echo.Context) error {
	if err := s.registry.Close(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listMunicipalities(c echo.Context) error {
	ms := s.store.ListMunicipalities()
	if label := c.QueryParam("region"); label != "" {
		r := model.ParseRegion(label)
		if r == model.RegionUnknown && label != model.RegionUnknown.Slug() {
			return fmt.Errorf("%w: unknown region %q", ErrBadRequest, label)
		}
		ms = s.store.ListByRegion(r)
	}
	if term := c.QueryParam("q"); term != "" {
		return c.JSON(http.StatusOK, state.Search(ms, term))
	}
	return c.JSON(http.StatusOK, ms)
}

func (s *Server) listRegions(c echo.Context) error {
	out := make([]regionResponse, 0, len(model.Regions))
	for _, r := range model.Regions {
		sum := s.store.Summary(r)
		resp := regionResponse{
			Slug:               r.Slug(),
			Name:               r.DisplayName(),
			EnglishName:        r.String(),
			Count:              sum.Count,
			TotalPopulation:    sum.TotalPopulation,
			OfficialPopulation: r.OfficialPopulation(),
		}
		if sum.Count > 0 {
			resp.Bound = [4]float64{sum.Bound.Left(), sum.Bound.Bottom(), sum.Bound.Right(), sum.Bound.Top()}
		}
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, out)
}
