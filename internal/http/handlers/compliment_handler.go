// Compliment HTTP handlers.
//
// REST endpoints for the anonymous compliment ledger:
//   - POST /groups/{id}/compliments           (send)
//   - GET  /groups/{id}/compliments/received  (own received view)
//   - GET  /groups/{id}/compliments/sent      (own sent view)
//
// The two list views are strictly partitioned: received never exposes other
// members' mail, sent never shows replies. Sender identity is part of the
// stored record but anonymity is a presentation rule for receivers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/services"
)

//
// DTOs
//

// SendComplimentRequest is the JSON payload for sending a compliment.
type SendComplimentRequest struct {
	// ReceiverID identifies the recipient, who must be a member of the group.
	ReceiverID string `json:"receiver_id" binding:"required" example:"9f1b742d-53c8-4f79-a2a6-0f8734d2f811"`
	// Message is the compliment text (1–2000 chars after trimming).
	Message string `json:"message" binding:"required" example:"Your demo today was fantastic."`
}

// ReceivedCompliment is the receiver-facing projection of a compliment: the
// sender identity is withheld.
type ReceivedCompliment struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ComplimentsResponse wraps a compliment list view.
type ComplimentsResponse struct {
	GroupID     string              `json:"group_id"`
	Compliments []domain.Compliment `json:"compliments"`
}

// ReceivedComplimentsResponse wraps the anonymized received view.
type ReceivedComplimentsResponse struct {
	GroupID     string               `json:"group_id"`
	Compliments []ReceivedCompliment `json:"compliments"`
}

// anonymize strips sender identity from compliments for the received view.
func anonymize(items []domain.Compliment) []ReceivedCompliment {
	out := make([]ReceivedCompliment, 0, len(items))
	for _, it := range items {
		ts := ""
		if !it.Timestamp.IsZero() {
			ts = it.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
		out = append(out, ReceivedCompliment{
			ID:        it.ID,
			GroupID:   it.GroupID,
			Message:   it.Message,
			Timestamp: ts,
		})
	}
	return out
}

//
// Handlers
//

// SendCompliment godoc
// @ID          sendCompliment
// @Summary     Send a compliment
// @Description Records a compliment within a group. Both sender and receiver must be members; sending to oneself is rejected.
// @Tags        Compliments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       id         path    string  true  "Group ID (UUID)"     format(uuid)
// @Param       body       body    handlers.SendComplimentRequest  true  "Compliment payload"
//
// @Success     201  {object}  domain.Compliment
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failure"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member / self-compliment"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/compliments [post]
func (h *Handlers) SendCompliment(c *gin.Context) {
	var req SendComplimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	cp, err := h.complimentSvc.Send(c.Request.Context(), userID(c), req.ReceiverID, c.Param("id"), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyReceiver):
			fail(c, http.StatusBadRequest, ErrCodeReceiverRequired, "receiver required")
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeMessageRequired, "message must not be empty")
		case errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeMessageTooLong, "message too long")
		case errors.Is(err, services.ErrSelfCompliment):
			fail(c, http.StatusForbidden, ErrCodeSelfCompliment, "cannot send a compliment to yourself")
		case errors.Is(err, services.ErrNotMember):
			fail(c, http.StatusForbidden, ErrCodeNotAMember, "sender and receiver must both be group members")
		case errors.Is(err, services.ErrGroupNotFound):
			fail(c, http.StatusNotFound, ErrCodeGroupNotFound, "group not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "sending compliment failed")
		}
		return
	}
	ok(c, http.StatusCreated, cp)
}

// ListReceived godoc
// @ID          listReceived
// @Summary     List received compliments
// @Description Returns the caller's received compliments in this group, newest first, with sender identity withheld.
// @Tags        Compliments
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       id         path    string  true  "Group ID (UUID)"     format(uuid)
//
// @Success     200  {object}  handlers.ReceivedComplimentsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/compliments/received [get]
func (h *Handlers) ListReceived(c *gin.Context) {
	groupID := c.Param("id")
	items, err := h.complimentSvc.Received(c.Request.Context(), userID(c), groupID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reading compliments failed")
		return
	}
	ok(c, http.StatusOK, ReceivedComplimentsResponse{GroupID: groupID, Compliments: anonymize(items)})
}

// ListSent godoc
// @ID          listSent
// @Summary     List sent compliments
// @Description Returns the caller's sent compliments in this group, newest first.
// @Tags        Compliments
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
// @Param       id         path    string  true  "Group ID (UUID)"     format(uuid)
//
// @Success     200  {object}  handlers.ComplimentsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/compliments/sent [get]
func (h *Handlers) ListSent(c *gin.Context) {
	groupID := c.Param("id")
	items, err := h.complimentSvc.Sent(c.Request.Context(), userID(c), groupID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reading compliments failed")
		return
	}
	ok(c, http.StatusOK, ComplimentsResponse{GroupID: groupID, Compliments: items})
}
