// Profile HTTP handlers.
//
// REST endpoints for the caller's profile document:
//   - GET /profile   (fetch; 404 while no display name has been saved)
//   - PUT /profile   (create or update the display name)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kudoslab/go-kudos-backend/internal/services"
)

//
// DTOs
//

// SaveProfileRequest is the JSON payload for saving the display name.
type SaveProfileRequest struct {
	// DisplayName is the name shown to other group members (1–60 chars
	// after whitespace normalization).
	DisplayName string `json:"display_name" binding:"required" example:"Alex"`
}

//
// Handlers
//

// GetProfile godoc
// @ID          getProfile
// @Summary     Fetch own profile
// @Description Returns the caller's profile. 404 until a display name has been saved; absence is a normal state for fresh identities.
// @Tags        Profile
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
//
// @Success     200  {object}  domain.Profile
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "No profile yet"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profileSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reading profile failed")
		return
	}
	if p == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no profile yet")
		return
	}
	ok(c, http.StatusOK, p)
}

// SaveProfile godoc
// @ID          saveProfile
// @Summary     Save display name
// @Description Creates or replaces the caller's display name. Whitespace is normalized; an effectively empty name is rejected.
// @Tags        Profile
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       body       body    handlers.SaveProfileRequest  true  "Display name payload"
//
// @Success     200  {object}  domain.Profile
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or invalid name"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [put]
func (h *Handlers) SaveProfile(c *gin.Context) {
	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.profileSvc.Save(c.Request.Context(), userID(c), req.DisplayName)
	if err != nil {
		if errors.Is(err, services.ErrEmptyName) {
			fail(c, http.StatusBadRequest, ErrCodeNameRequired, "display name must not be empty")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "saving profile failed")
		return
	}
	ok(c, http.StatusOK, p)
}
