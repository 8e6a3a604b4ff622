package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/yuin/goldmark"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/server/agent"
	"github.com/procura/procura/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	ConversationID string            `json:"conversationId"`
	Messages       []messageResponse `json:"messages"`
}

type conversationRequest struct {
	Title string `json:"title"`
}

type conversationResponse struct {
	UID                string `json:"uid"`
	Title              string `json:"title"`
	LastMessagePreview string `json:"lastMessagePreview"`
	Status             string `json:"status"`
	CreatedTs          int64  `json:"createdTs"`
	UpdatedTs          int64  `json:"updatedTs"`
}

type messageResponse struct {
	ID        int32           `json:"id"`
	Sender    string          `json:"sender"`
	Content   string          `json:"content"`
	HTML      string          `json:"html,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedTs int64           `json:"createdTs"`
}

type actionResponse struct {
	ID         int32           `json:"id"`
	ActionType string          `json:"actionType"`
	Parameters json.RawMessage `json:"parameters"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedTs  int64           `json:"createdTs"`
}

type conversationDetailResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Messages     []messageResponse    `json:"messages"`
	Actions      []actionResponse     `json:"actions"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Route registration
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) registerAIChatRoutes(e *echo.Echo) {
	e.POST("/api/v1/agent/messages", s.handleAgentMessage)

	g := e.Group("/api/v1/conversations")
	g.GET("", s.listConversations)
	g.POST("", s.createConversation)
	g.GET("/:uid", s.getConversation)
	g.POST("/:uid/touch", s.touchConversation)
	g.POST("/:uid/close", s.closeConversation)
	g.POST("/:uid/abort", s.abortConversation)
}

// ─────────────────────────────────────────────────────────────────────────────
// Agent turn
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) handleAgentMessage(c *echo.Context) error {
	userID, ok, err := s.currentUser(c)
	if !ok {
		return err
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, userID, apperr.Validation("request body must be a JSON object"))
	}

	resp, err := s.Agent.HandleAgentMessage(c.Request().Context(), agent.Request{
		UserID:         userID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusOK, chatResponse{
		ConversationID: resp.ConversationID,
		Messages:       convertMessages(resp.Messages),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversation CRUD
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) listConversations(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	list, err := s.Agent.ListConversations(c.Request().Context(), userID, queryInt(c, "limit"))
	if err != nil {
		return s.fail(c, userID, err)
	}
	resp := make([]conversationResponse, 0, len(list))
	for _, conv := range list {
		resp = append(resp, convertConversation(conv))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) createConversation(c *echo.Context) error {
	userID, ok, err := s.currentUser(c)
	if !ok {
		return err
	}
	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		req.Title = ""
	}
	conv, err := s.Agent.CreateConversation(c.Request().Context(), userID, req.Title)
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusCreated, convertConversation(conv))
}

func (s *APIV1Service) getConversation(c *echo.Context) error {
	userID, ok, err := s.currentUser(c)
	if !ok {
		return err
	}
	detail, err := s.Agent.GetConversation(c.Request().Context(), userID, c.Param("uid"))
	if err != nil {
		return s.fail(c, userID, err)
	}
	resp := conversationDetailResponse{
		Conversation: convertConversation(detail.Conversation),
		Messages:     convertMessages(detail.Messages),
		Actions:      make([]actionResponse, 0, len(detail.Actions)),
	}
	for _, action := range detail.Actions {
		resp.Actions = append(resp.Actions, actionResponse{
			ID:         action.ID,
			ActionType: action.ActionType,
			Parameters: rawJSON(action.Parameters),
			Result:     rawJSON(action.Result),
			Error:      action.Error,
			CreatedTs:  action.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

type conversationOp func(ctx context.Context, userID, uid string) (*store.Conversation, error)

func (s *APIV1Service) updateConversation(c *echo.Context, op conversationOp) error {
	userID, ok, err := s.currentUser(c)
	if !ok {
		return err
	}
	conv, err := op(c.Request().Context(), userID, c.Param("uid"))
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusOK, convertConversation(conv))
}

func (s *APIV1Service) touchConversation(c *echo.Context) error {
	return s.updateConversation(c, s.Agent.TouchConversation)
}

func (s *APIV1Service) closeConversation(c *echo.Context) error {
	return s.updateConversation(c, s.Agent.CloseConversation)
}

func (s *APIV1Service) abortConversation(c *echo.Context) error {
	return s.updateConversation(c, s.Agent.AbortConversation)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

var markdown = goldmark.New()

// renderMarkdown converts an agent reply to HTML. Raw HTML in the source is
// not passed through.
func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		slog.Warn("failed to render markdown", "error", err)
		return ""
	}
	return buf.String()
}

func convertConversation(conv *store.Conversation) conversationResponse {
	return conversationResponse{
		UID:                conv.UID,
		Title:              conv.Title,
		LastMessagePreview: conv.LastMessagePreview,
		Status:             string(conv.Status),
		CreatedTs:          conv.CreatedTs,
		UpdatedTs:          conv.UpdatedTs,
	}
}

func convertMessages(messages []*store.Message) []messageResponse {
	resp := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		msg := messageResponse{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Content:   m.Content,
			Metadata:  rawJSON(m.Metadata),
			CreatedTs: m.CreatedTs,
		}
		if m.Sender == store.SenderAgent {
			msg.HTML = renderMarkdown(m.Content)
		}
		resp = append(resp, msg)
	}
	return resp
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}
