// Live view streaming over Server-Sent Events.
//
// Each endpoint mirrors one subscription: the current snapshot is delivered
// immediately as the first event, and a fresh snapshot follows every change.
// Events are coalesced upstream, so consecutive snapshots on one connection
// advance in the store's commit order. Periodic keep-alive events hold
// intermediaries open; clients reconnect after StreamMaxDuration (when set)
// or any disconnect, and the first event of the new connection restores the
// current state.
//
// Endpoints:
//   - GET /stream/profile                            (own profile document)
//   - GET /groups/{id}/stream/meta                   (group document; "null" signals deletion)
//   - GET /groups/{id}/stream/members                (roster)
//   - GET /groups/{id}/stream/compliments/received   (own received view, anonymized)
//   - GET /groups/{id}/stream/compliments/sent       (own sent view)
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/services"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// streamSSE pumps snapshots from ch to the client as SSE "snapshot" events,
// rendering each through render first. It owns the subscription: cancel runs
// on every exit path, including client disconnect.
func streamSSE[T any](c *gin.Context, h *Handlers, ch <-chan T, cancel stream.CancelFunc, render func(T) any) {
	defer cancel()

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	// Disable proxy buffering (nginx) so events flush immediately.
	hdr.Set("X-Accel-Buffering", "no")

	keepAlive := h.StreamKeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if h.StreamMaxDuration > 0 {
		t := time.NewTimer(h.StreamMaxDuration)
		defer t.Stop()
		deadline = t.C
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case v, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("snapshot", render(v))
			return true
		case <-ticker.C:
			c.SSEvent("keep-alive", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-deadline:
			return false
		}
	})
}

// failSubscribe maps a failed initial subscription to an HTTP error. The
// initial fetch hitting an error means the view cannot be established at all.
func failSubscribe(c *gin.Context, err error) {
	if errors.Is(err, services.ErrGroupNotFound) {
		fail(c, http.StatusNotFound, ErrCodeGroupNotFound, "group not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "establishing live view failed")
}

// StreamProfile godoc
// @ID          streamProfile
// @Summary     Live profile stream
// @Description SSE stream of the caller's profile document. The first event carries the current state ("null" while no profile exists).
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"  example(141add05-4415-4938-b5a1-17e0d3171aff)
//
// @Success     200  {string}  string  "event stream"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stream/profile [get]
func (h *Handlers) StreamProfile(c *gin.Context) {
	ch, cancel, err := h.profileSvc.Subscribe(c.Request.Context(), userID(c))
	if err != nil {
		failSubscribe(c, err)
		return
	}
	streamSSE(c, h, ch, cancel, func(p *domain.Profile) any { return p })
}

// StreamGroupMeta godoc
// @ID          streamGroupMeta
// @Summary     Live group document stream
// @Description SSE stream of the group document. A "null" snapshot means the group no longer exists; clients fall back to their group chooser on it.
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"
// @Param       id         path    string  true  "Group ID (UUID)"  format(uuid)
//
// @Success     200  {string}  string  "event stream"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/stream/meta [get]
func (h *Handlers) StreamGroupMeta(c *gin.Context) {
	ch, cancel, err := h.groupSvc.SubscribeMeta(c.Request.Context(), c.Param("id"))
	if err != nil {
		failSubscribe(c, err)
		return
	}
	streamSSE(c, h, ch, cancel, func(g *domain.Group) any { return g })
}

// StreamRoster godoc
// @ID          streamRoster
// @Summary     Live roster stream
// @Description SSE stream of the group roster in join order.
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"
// @Param       id         path    string  true  "Group ID (UUID)"  format(uuid)
//
// @Success     200  {string}  string  "event stream"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/stream/members [get]
func (h *Handlers) StreamRoster(c *gin.Context) {
	ch, cancel, err := h.groupSvc.SubscribeRoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		failSubscribe(c, err)
		return
	}
	streamSSE(c, h, ch, cancel, func(members []domain.Membership) any {
		return RosterResponse{GroupID: c.Param("id"), Members: members}
	})
}

// StreamReceived godoc
// @ID          streamReceived
// @Summary     Live received-compliments stream
// @Description SSE stream of the caller's received compliments in this group, newest first, sender identity withheld.
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"
// @Param       id         path    string  true  "Group ID (UUID)"  format(uuid)
//
// @Success     200  {string}  string  "event stream"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/stream/compliments/received [get]
func (h *Handlers) StreamReceived(c *gin.Context) {
	groupID := c.Param("id")
	ch, cancel, err := h.complimentSvc.SubscribeReceived(c.Request.Context(), userID(c), groupID)
	if err != nil {
		failSubscribe(c, err)
		return
	}
	streamSSE(c, h, ch, cancel, func(items []domain.Compliment) any {
		return ReceivedComplimentsResponse{GroupID: groupID, Compliments: anonymize(items)}
	})
}

// StreamSent godoc
// @ID          streamSent
// @Summary     Live sent-compliments stream
// @Description SSE stream of the caller's sent compliments in this group, newest first.
// @Tags        Streams
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  true  "Anonymous identity"
// @Param       id         path    string  true  "Group ID (UUID)"  format(uuid)
//
// @Success     200  {string}  string  "event stream"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/stream/compliments/sent [get]
func (h *Handlers) StreamSent(c *gin.Context) {
	groupID := c.Param("id")
	ch, cancel, err := h.complimentSvc.SubscribeSent(c.Request.Context(), userID(c), groupID)
	if err != nil {
		failSubscribe(c, err)
		return
	}
	streamSSE(c, h, ch, cancel, func(items []domain.Compliment) any {
		return ComplimentsResponse{GroupID: groupID, Compliments: items}
	})
}
