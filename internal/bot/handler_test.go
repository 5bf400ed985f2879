package bot

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/bot/update", h.Update)
	return r
}

func postUpdate(t *testing.T, r *gin.Engine, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/bot/update", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Bot-Token", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateHandler(t *testing.T) {
	d := newTestDispatcher(&fakeEngine{}, &fakeQueries{}, nil)
	r := newTestRouter(NewHandler(d, ""))

	w := postUpdate(t, r, "", UpdateRequest{ParticipantID: "bob", Text: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    UpdateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, replyHelpPrompt, body.Data.Reply)
}

func TestUpdateHandlerWebhookToken(t *testing.T) {
	d := newTestDispatcher(&fakeEngine{}, &fakeQueries{}, nil)
	r := newTestRouter(NewHandler(d, "hook-secret"))

	w := postUpdate(t, r, "", UpdateRequest{ParticipantID: "bob", Text: "/start"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postUpdate(t, r, "wrong", UpdateRequest{ParticipantID: "bob", Text: "/start"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postUpdate(t, r, "hook-secret", UpdateRequest{ParticipantID: "bob", Text: "/start"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateHandlerBadRequest(t *testing.T) {
	d := newTestDispatcher(&fakeEngine{}, &fakeQueries{}, nil)
	r := newTestRouter(NewHandler(d, ""))

	w := postUpdate(t, r, "", map[string]string{"participant_id": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
