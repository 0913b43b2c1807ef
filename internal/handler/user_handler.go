package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"dietdash/internal/auth"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/repository"
	"dietdash/internal/service"
)

// UserHandler serves stored account data.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetProfile godoc
// @Summary Stored profile of the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /profile [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return httpError(apperrors.ErrInvalidSession)
	}

	user, err := h.svc.GetProfile(c.Request().Context(), session.User.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, apperrors.ErrorResponse{
				Error: "Profile not found",
				Code:  "NOT_FOUND",
			})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
