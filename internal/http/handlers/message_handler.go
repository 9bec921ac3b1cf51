// Messaging handlers.
//
//   - GET /messages/conversation/{userId}  (history, weak ETag, 304 on match)
//   - GET /ws                              (WebSocket, chat:message frames)
//
// Socket frames are delivered through the realtime hub; the handler only
// upgrades the connection, subscribes the caller, and turns inbound
// chat:message frames into MessageService.Send calls.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/realtime"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// ChatFrame is the data of an inbound chat:message frame.
type ChatFrame struct {
	To   string `json:"to"`
	Text string `json:"text"`
	// From is optional and must equal the authenticated user when present.
	From string `json:"from,omitempty"`
}

// Frame errors sent back to the originating socket.
var (
	errUnknownEvent   = errors.New("unknown event")
	errInvalidPayload = errors.New("invalid payload")
	errSenderMismatch = errors.New("sender does not match the authenticated user")
	errNotDelivered   = errors.New("message could not be delivered")
)

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes chat text:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two,
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Conversation godoc
// @ID          conversation
// @Summary     Conversation with a user
// @Description Messages exchanged between the caller and userId, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       userId         path    string  true   "Other participant's user ID"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.ChatMessage
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /messages/conversation/{userId} [get]
func (h *Handlers) Conversation(c *gin.Context) {
	ctx := c.Request.Context()
	me, other := userID(c), c.Param("userId")

	if etag, err := h.messages.ETag(ctx, me, other); err == nil && notModified(c, etag) {
		return
	}

	items, err := h.messages.Conversation(ctx, me, other)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// Socket godoc
// @ID          socket
// @Summary     Realtime chat socket
// @Description Upgrades to a WebSocket. Send {"event":"chat:message","data":{"to","text"}}; receive chat:message and error envelopes. The token may be passed as ?token=.
// @Tags        Messages
// @Security    BearerAuth
// @Param       token  query  string  false  "Bearer token for clients that cannot set headers"
// @Success     101  {string}  string  "Switching Protocols"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ws [get]
func (h *Handlers) Socket(c *gin.Context) {
	uid := userID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		return
	}
	sub := h.hub.Subscribe(uid)
	realtime.Serve(c.Request.Context(), conn, sub, h.chatFrames(uid))
}

// chatFrames returns the inbound frame handler for one authenticated socket.
func (h *Handlers) chatFrames(uid string) realtime.FrameHandler {
	return func(ctx context.Context, in realtime.Inbound) error {
		if in.Event != realtime.EventChatMessage {
			return errUnknownEvent
		}
		var f ChatFrame
		if err := json.Unmarshal(in.Data, &f); err != nil {
			return errInvalidPayload
		}
		if f.From != "" && f.From != uid {
			return errSenderMismatch
		}
		if _, err := h.messages.Send(ctx, uid, strings.TrimSpace(f.To), sanitizeContent(f.Text)); err != nil {
			var ve *services.ValidationError
			if errors.As(err, &ve) {
				return ve
			}
			return errNotDelivered
		}
		return nil
	}
}
