package server

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/meigma/zipgrid/dataset"
)

type resolveResponse struct {
	Code  string `json:"code"`
	I     int    `json:"i"`
	J     int    `json:"j"`
	Found bool   `json:"found"`
}

type suggestResponse struct {
	Partial string          `json:"partial"`
	Matches []dataset.Entry `json:"matches"`
	Coords  [][2]int        `json:"coords"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"status": "ok", "ready": s.idx.Ready()})
}

func (s *Server) resolve(c *gin.Context) {
	code := c.Param("code")
	if len(code) != dataset.CodeLen || !digits(code) {
		c.JSON(nethttp.StatusBadRequest, errorResponse{Error: "code must be 5 digits"})
		return
	}
	loc, err := s.idx.ResolveContext(c.Request.Context(), code)
	if err != nil {
		if clientGone(c, err) {
			return
		}
		s.logger.Warn("resolve failed", "code", code, "error", err)
		c.JSON(nethttp.StatusBadGateway, errorResponse{Error: "shard unavailable"})
		return
	}
	c.JSON(nethttp.StatusOK, resolveResponse{Code: code, I: loc.I, J: loc.J, Found: loc.Found})
}

func (s *Server) suggest(c *gin.Context) {
	partial := c.Param("partial")
	if len(partial) == 0 || len(partial) >= dataset.CodeLen || !digits(partial) {
		c.JSON(nethttp.StatusBadRequest, errorResponse{Error: "partial must be 1 to 4 digits"})
		return
	}
	sg, err := s.idx.SuggestContext(c.Request.Context(), partial)
	if err != nil {
		if clientGone(c, err) {
			return
		}
		s.logger.Warn("suggest failed", "partial", partial, "error", err)
		c.JSON(nethttp.StatusBadGateway, errorResponse{Error: "shard unavailable"})
		return
	}
	if sg == nil {
		c.JSON(nethttp.StatusNotFound, errorResponse{Error: "no matches"})
		return
	}

	coords := make([][2]int, len(sg.Coords))
	for i, co := range sg.Coords {
		coords[i] = [2]int{co.I, co.J}
	}
	c.JSON(nethttp.StatusOK, suggestResponse{
		Partial: partial,
		Matches: sg.Candidates,
		Coords:  coords,
	})
}

// statusClientClosed is recorded for requests abandoned by the client.
const statusClientClosed = 499

// clientGone reports whether err means the client went away, and if so
// aborts the request without a body.
func clientGone(c *gin.Context, err error) bool {
	if !errors.Is(err, context.Canceled) {
		return false
	}
	c.AbortWithStatus(statusClientClosed)
	return true
}

func digits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
