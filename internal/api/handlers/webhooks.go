package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dotstark/ragserve/internal/cache"
	"github.com/dotstark/ragserve/internal/history"
	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/messaging"
	"github.com/dotstark/ragserve/internal/rag"
	"github.com/dotstark/ragserve/internal/tenant"
)

// seenTTL is how long processed message ids are remembered for
// deduplication of webhook redeliveries.
const seenTTL = 24 * time.Hour

type WebhookHandler struct {
	answerer *rag.Answerer
	history  *history.Store
	tenants  *tenant.Service
	sender   *messaging.Client
	cache    *cache.Cache
}

func NewWebhookHandler(answerer *rag.Answerer, hs *history.Store, ts *tenant.Service, sender *messaging.Client, c *cache.Cache) *WebhookHandler {
	return &WebhookHandler{answerer: answerer, history: hs, tenants: ts, sender: sender, cache: c}
}

// VerifyMeta answers the Graph API subscription handshake: echo the
// challenge when the verify token matches one of the tenant's channels.
func (h *WebhookHandler) VerifyMeta(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" {
		writeError(w, http.StatusBadRequest, "invalid verification request")
		return
	}

	for _, platform := range []string{"facebook", "instagram"} {
		ch, err := h.tenants.GetChannel(r.Context(), tenantID, platform)
		if err != nil {
			continue
		}
		if ch.VerifyToken == token {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, challenge)
			return
		}
	}
	writeError(w, http.StatusForbidden, "verification token mismatch")
}

type metaEvent struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				MID    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// HandleMeta processes Messenger and Instagram message events. Echoes of
// the bot's own messages, empty messages and redeliveries are dropped.
// The response is always 200 so Meta does not retry events we chose to
// skip.
func (h *WebhookHandler) HandleMeta(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	var event metaEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	platform := messaging.PlatformFacebook
	if event.Object == "instagram" {
		platform = messaging.PlatformInstagram
	}

	for _, entry := range event.Entry {
		for _, msg := range entry.Messaging {
			if msg.Message.IsEcho || msg.Message.Text == "" {
				continue
			}
			if msg.Sender.ID == entry.ID {
				continue
			}
			if msg.Message.MID != "" {
				fresh, err := h.cache.MarkSeen(r.Context(), msg.Message.MID, seenTTL)
				if err != nil {
					slog.Warn("dedup check failed", "error", err)
				} else if !fresh {
					continue
				}
			}
			h.reply(r, tenantID, string(platform), msg.Sender.ID, msg.Message.Text, func(text string) error {
				ch, err := h.tenants.GetChannel(r.Context(), tenantID, string(platform))
				if err != nil {
					return err
				}
				return h.sender.SendMeta(r.Context(), ch.AccessToken, msg.Sender.ID, platform, text)
			})
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "EVENT_RECEIVED")
}

type telegramUpdate struct {
	Message struct {
		MessageID int64 `json:"message_id"`
		From      struct {
			ID    int64 `json:"id"`
			IsBot bool  `json:"is_bot"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// HandleTelegram processes one Telegram bot update.
func (h *WebhookHandler) HandleTelegram(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	msg := update.Message
	if msg.From.IsBot || msg.Text == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	dedupKey := fmt.Sprintf("tg:%s:%d", tenantID, msg.MessageID)
	fresh, err := h.cache.MarkSeen(r.Context(), dedupKey, seenTTL)
	if err != nil {
		slog.Warn("dedup check failed", "error", err)
	} else if !fresh {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	userID := fmt.Sprintf("tg-%d", msg.From.ID)
	h.reply(r, tenantID, "telegram", userID, msg.Text, func(text string) error {
		ch, err := h.tenants.GetChannel(r.Context(), tenantID, "telegram")
		if err != nil {
			return err
		}
		return h.sender.SendTelegram(r.Context(), ch.TelegramBotToken, fmt.Sprintf("%d", msg.Chat.ID), text)
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// reply answers one incoming channel message and delivers the result. A
// quota failure becomes the canned limit message; any other failure
// becomes a generic apology.
func (h *WebhookHandler) reply(r *http.Request, tenantID uuid.UUID, platform, userID, question string, deliver func(string) error) {
	ctx := r.Context()

	msgs, err := h.history.Recent(ctx, tenantID.String(), userID)
	if err != nil {
		slog.Warn("failed to load conversation history", "tenant_id", tenantID, "error", err)
	}

	text := errorMessage
	answer, err := h.answerer.Ask(ctx, tenantID.String(), question, msgs)
	switch {
	case err == nil:
		text = answer.Text
	case errors.Is(err, llm.ErrQuotaExceeded):
		text = quotaMessage
	default:
		slog.Error("answer generation failed", "tenant_id", tenantID, "platform", platform, "error", err)
	}

	if err := deliver(text); err != nil {
		slog.Error("message delivery failed", "tenant_id", tenantID, "platform", platform, "error", err)
		return
	}

	if err := h.history.AppendExchange(ctx, tenantID.String(), userID, question, text); err != nil {
		slog.Warn("failed to record conversation", "tenant_id", tenantID, "error", err)
	}
}
