package availability

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Calendar management: the owning professional only
	own := api.Group("/availability", auth.RequireRole(auth.RoleProfessional))
	own.POST("/initialize", h.Initialize)
	own.GET("", h.Get)
	own.PUT("", h.BulkUpdate)
	own.PUT("/days/:id", h.UpdateDayByID)
	own.PUT("/:weekday", h.UpdateDay)
	own.DELETE("/:weekday", h.ClearDay)
	own.POST("/:weekday/generate", h.GenerateDay)

	// Client-facing reads
	api.GET("/professionals/:ref/open-slots", h.OpenSlots)
}

type updateDayRequest struct {
	Slots     []timerange.Slot `json:"slots"`
	Available *bool            `json:"available,omitempty"`
}

type bulkUpdateRequest struct {
	Days []DayUpdate `json:"days"`
}

type generateRequest struct {
	Start    string `json:"start_time"`
	End      string `json:"end_time"`
	Duration int    `json:"duration_minutes"`
}

type openSlotsResponse struct {
	ProfessionalRef string           `json:"professional_ref"`
	Date            string           `json:"date"`
	Slots           []timerange.Slot `json:"slots"`
}

func weekdayParam(c echo.Context) (timerange.Weekday, error) {
	return timerange.ParseWeekday(c.Param("weekday"))
}

func (h *Handler) Initialize(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	days, err := h.svc.Initialize(c.Request().Context(), caller, caller.ID)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, days)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	days, err := h.svc.Get(c.Request().Context(), caller, caller.ID)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) UpdateDay(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	weekday, err := weekdayParam(c)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	var req updateDayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	day, err := h.svc.UpdateDay(c.Request().Context(), caller, caller.ID, weekday, req.Slots, req.Available)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) UpdateDayByID(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateDayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	day, err := h.svc.UpdateDayByID(c.Request().Context(), caller, id, req.Slots, req.Available)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) BulkUpdate(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req bulkUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	days, err := h.svc.BulkUpdate(c.Request().Context(), caller, caller.ID, req.Days)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) ClearDay(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	weekday, err := weekdayParam(c)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	day, err := h.svc.ClearDay(c.Request().Context(), caller, caller.ID, weekday)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) GenerateDay(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	weekday, err := weekdayParam(c)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	day, err := h.svc.GenerateDay(c.Request().Context(), caller, caller.ID, weekday, req.Start, req.End, req.Duration)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) OpenSlots(c echo.Context) error {
	if _, err := auth.Caller(c); err != nil {
		return err
	}
	date, err := timerange.ParseDate(c.QueryParam("date"), h.svc.loc)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	ref := c.Param("ref")
	slots, err := h.svc.OpenSlots(c.Request().Context(), ref, date)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, openSlotsResponse{
		ProfessionalRef: ref,
		Date:            timerange.FormatDate(date),
		Slots:           slots,
	})
}
