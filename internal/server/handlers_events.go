package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calagent/internal/calendar"
)

func (s *Server) handleListEvents(c *gin.Context) {
	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	var opts calendar.ListOptions
	if raw := c.Query("time_min"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "time_min must be RFC3339"})
			return
		}
		opts.TimeMin = t
	}
	if raw := c.Query("time_max"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "time_max must be RFC3339"})
			return
		}
		opts.TimeMax = t
	}
	if raw := c.Query("max_results"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_results must be a positive integer"})
			return
		}
		opts.MaxResults = n
	}
	opts.PageToken = c.Query("page_token")
	opts.Query = c.Query("q")

	page, err := svc.ListEvents(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":          calendar.Summaries(page.Events),
		"next_page_token": page.NextPageToken,
	})
}

// eventRequest is the direct-CRUD body. It deliberately mirrors the
// interpreter's create/update shape so both surfaces behave the same.
type eventRequest struct {
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	StartDateTime string `json:"start_datetime"`
	EndDateTime   string `json:"end_datetime"`
	TimeZone      string `json:"timezone"`
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event body"})
		return
	}
	if req.Summary == "" || req.StartDateTime == "" || req.EndDateTime == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "summary, start_datetime and end_datetime are required"})
		return
	}

	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	created, err := svc.CreateEvent(c.Request.Context(), &calendarapi.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       &calendarapi.EventDateTime{DateTime: req.StartDateTime, TimeZone: req.TimeZone},
		End:         &calendarapi.EventDateTime{DateTime: req.EndDateTime, TimeZone: req.TimeZone},
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, calendar.ToEventSummary(created))
}

func (s *Server) handleGetEvent(c *gin.Context) {
	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	event, err := svc.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, calendar.ToEventSummary(event))
}

func (s *Server) handleUpdateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event body"})
		return
	}

	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	eventID := c.Param("id")
	current, err := svc.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		s.fail(c, err)
		return
	}

	updated := *current
	if req.Summary != "" {
		updated.Summary = req.Summary
	}
	if req.Description != "" {
		updated.Description = req.Description
	}
	if req.Location != "" {
		updated.Location = req.Location
	}
	if req.StartDateTime != "" {
		updated.Start = &calendarapi.EventDateTime{DateTime: req.StartDateTime, TimeZone: req.TimeZone}
	}
	if req.EndDateTime != "" {
		updated.End = &calendarapi.EventDateTime{DateTime: req.EndDateTime, TimeZone: req.TimeZone}
	}

	saved, err := svc.UpdateEvent(c.Request.Context(), eventID, &updated)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, calendar.ToEventSummary(saved))
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	svc, err := s.backend(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	eventID := c.Param("id")
	if err := svc.DeleteEvent(c.Request.Context(), eventID); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": eventID})
}
