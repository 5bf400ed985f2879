package bot

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/invitebot/backend/pkg/response"
)

// UpdateRequest is the body for POST /bot/update, as delivered by the
// transport adapter.
type UpdateRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	Text          string `json:"text" binding:"required"`
}

// UpdateResponse carries the reply text; empty means send nothing.
type UpdateResponse struct {
	Reply string `json:"reply"`
}

// Handler exposes the dispatcher over HTTP.
type Handler struct {
	dispatcher   *Dispatcher
	webhookToken string
}

// NewHandler creates a bot webhook handler. webhookToken may be empty to
// disable the shared-secret check (local development).
func NewHandler(dispatcher *Dispatcher, webhookToken string) *Handler {
	return &Handler{dispatcher: dispatcher, webhookToken: webhookToken}
}

// Update handles POST /bot/update.
func (h *Handler) Update(c *gin.Context) {
	if h.webhookToken != "" {
		presented := c.GetHeader("X-Bot-Token")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookToken)) != 1 {
			response.Unauthorized(c, "invalid webhook token")
			return
		}
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	reply := h.dispatcher.Dispatch(c.Request.Context(), req.ParticipantID, req.Text)
	response.OK(c, UpdateResponse{Reply: reply})
}
