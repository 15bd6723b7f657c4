// Group HTTP handlers.
//
// REST endpoints for group lifecycle and membership:
//   - POST   /groups                (create; creator joins atomically)
//   - GET    /groups/{id}           (lookup)
//   - POST   /groups/{id}/join     (join an existing group)
//   - GET    /groups/{id}/members  (roster, join order)
//   - DELETE /groups/{id}           (admin only, token guarded)
package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/services"
)

// HeaderAdminToken authenticates the destructive admin endpoints.
const HeaderAdminToken = "X-Admin-Token"

//
// DTOs
//

// CreateGroupRequest is the JSON payload for creating a group.
type CreateGroupRequest struct {
	// Name optionally sets the group name; a default is used when empty.
	Name string `json:"name" example:"Team Kudos"`
	// DisplayName is the creator's name snapshot for the roster.
	DisplayName string `json:"display_name" binding:"required" example:"Alex"`
}

// JoinGroupRequest is the JSON payload for joining a group.
type JoinGroupRequest struct {
	// DisplayName is the joiner's name snapshot for the roster.
	DisplayName string `json:"display_name" binding:"required" example:"Sam"`
}

// RosterResponse wraps the member list of a group.
type RosterResponse struct {
	GroupID string              `json:"group_id"`
	Members []domain.Membership `json:"members"`
}

//
// Handlers
//

// CreateGroup godoc
// @ID          createGroup
// @Summary     Create a group
// @Description Creates a group and enrolls the creator as its first member in one atomic step: no observable state has the group without its creator on the roster.
// @Tags        Groups
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       body       body    handlers.CreateGroupRequest  true  "Create group payload"
//
// @Success     201  {object}  domain.Group
// @Failure     400  {object}  handlers.ErrorResponse  "Missing display name"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups [post]
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	g, err := h.groupSvc.Create(c.Request.Context(), req.Name, userID(c), req.DisplayName)
	if err != nil {
		if errors.Is(err, services.ErrEmptyName) {
			fail(c, http.StatusBadRequest, ErrCodeNameRequired, "display name must not be empty")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "creating group failed")
		return
	}
	ok(c, http.StatusCreated, g)
}

// GetGroup godoc
// @ID          getGroup
// @Summary     Look up a group
// @Description Returns the group document for an invite id.
// @Tags        Groups
// @Produce     json
//
// @Param       id  path  string  true  "Group ID (UUID)"  format(uuid) example(52a5b997-03a3-4a36-9df6-92e2f40dfcf8)
//
// @Success     200  {object}  domain.Group
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id} [get]
func (h *Handlers) GetGroup(c *gin.Context) {
	g, err := h.groupSvc.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			fail(c, http.StatusNotFound, ErrCodeGroupNotFound, "group not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reading group failed")
		return
	}
	ok(c, http.StatusOK, g)
}

// JoinGroup godoc
// @ID          joinGroup
// @Summary     Join a group
// @Description Adds the caller to an existing group. Joining a group the caller already belongs to refreshes the name snapshot and join time. A failed join leaves no partial state behind.
// @Tags        Groups
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       id         path    string  true  "Group ID (UUID)"     format(uuid)
// @Param       body       body    handlers.JoinGroupRequest  true  "Join payload"
//
// @Success     200  {object}  domain.Membership
// @Failure     400  {object}  handlers.ErrorResponse  "Missing display name"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/join [post]
func (h *Handlers) JoinGroup(c *gin.Context) {
	var req JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.groupSvc.Join(c.Request.Context(), c.Param("id"), userID(c), req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyName):
			fail(c, http.StatusBadRequest, ErrCodeNameRequired, "display name must not be empty")
		case errors.Is(err, services.ErrGroupNotFound):
			fail(c, http.StatusNotFound, ErrCodeGroupNotFound, "group not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "joining group failed")
		}
		return
	}
	ok(c, http.StatusOK, m)
}

// ListMembers godoc
// @ID          listMembers
// @Summary     List group members
// @Description Returns the roster of a group in join order.
// @Tags        Groups
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       id         path    string  true  "Group ID (UUID)"     format(uuid)
//
// @Success     200  {object}  handlers.RosterResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/members [get]
func (h *Handlers) ListMembers(c *gin.Context) {
	groupID := c.Param("id")
	if _, err := h.groupSvc.Lookup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			fail(c, http.StatusNotFound, ErrCodeGroupNotFound, "group not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reading group failed")
		return
	}

	members, err := h.groupSvc.Roster(c.Request.Context(), groupID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reading roster failed")
		return
	}
	ok(c, http.StatusOK, RosterResponse{GroupID: groupID, Members: members})
}

// DeleteGroup godoc
// @ID          deleteGroup
// @Summary     Delete a group (admin)
// @Description Deletes a group and cascades its memberships. Compliments are kept: the ledger outlives the group. Requires the X-Admin-Token header.
// @Tags        Admin
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Admin token"
// @Param       id             path    string  true  "Group ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad or missing token"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id} [delete]
func (h *Handlers) DeleteGroup(c *gin.Context) {
	token := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
	if h.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.AdminToken)) != 1 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "admin token required")
		return
	}

	if err := h.groupSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			fail(c, http.StatusNotFound, ErrCodeGroupNotFound, "group not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "deleting group failed")
		return
	}
	noContent(c)
}
