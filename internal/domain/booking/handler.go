package booking

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/availability/check-slot", h.CheckSlot)

	// Party-gated in the service
	api.GET("/bookings", h.List)
	api.GET("/bookings/:id", h.Get)
	api.PUT("/bookings/:id/confirm", h.Confirm)
	api.PUT("/bookings/:id/cancel", h.Cancel)

	clients := api.Group("", auth.RequireRole(auth.RoleClient))
	clients.POST("/bookings", h.Create)

	pros := api.Group("", auth.RequireRole(auth.RoleProfessional))
	pros.PUT("/bookings/:id/complete", h.Complete)
	pros.PUT("/bookings/:id/reschedule", h.Reschedule)
}

type checkSlotRequest struct {
	ProfessionalRef string `json:"professional_ref"`
	Date            string `json:"date"`
	Start           string `json:"start_time"`
	End             string `json:"end_time"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func bookingID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CheckSlot(c echo.Context) error {
	if _, err := auth.Caller(c); err != nil {
		return err
	}
	var req checkSlotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	check, err := h.svc.CheckSlot(c.Request().Context(), req.ProfessionalRef, req.Date, req.Start, req.End)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, check)
}

func (h *Handler) Create(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.Create(c.Request().Context(), caller, req)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) List(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{Limit: pg.Limit, Offset: pg.Offset}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return apperror.ToHTTP(err)
		}
		f.Status = st
	}
	items, total, err := h.svc.ListMine(c.Request().Context(), caller, f)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Confirm(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Confirm(c.Request().Context(), caller, id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Cancel(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	b, err := h.svc.Cancel(c.Request().Context(), caller, id, req.Reason)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Complete(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Complete(c.Request().Context(), caller, id)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Reschedule(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.Reschedule(c.Request().Context(), caller, id, req)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}
