package directory

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	api.PUT("/participants/me", h.RegisterSelf)
	api.GET("/participants/me", h.Me)
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// meResponse exposes the caller's own contact details, which the public
// Participant encoding omits.
type meResponse struct {
	*Participant
	Email string `json:"email"`
}

// RegisterSelf registers the caller under the role carried by their token.
func (h *Handler) RegisterSelf(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Register(c.Request().Context(), caller.ID, caller.Role, req.Email, req.DisplayName)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, meResponse{Participant: p, Email: p.Email})
}

func (h *Handler) Me(c echo.Context) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}
	p, err := h.svc.ByAccount(c.Request().Context(), caller.ID)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, meResponse{Participant: p, Email: p.Email})
}
