// Package telegram adapts bot updates to session events and renders the
// replies and error texts users see.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"resale-bot/api/internal/session"
)

type Router struct {
	Bot      *tgbotapi.BotAPI
	Sessions *session.Manager
	Log      *slog.Logger
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID
	uid := msg.From.ID

	switch {
	case msg.IsCommand():
		r.handleCommand(cid, uid, msg)
	case len(msg.Photo) > 0:
		r.handlePhoto(cid, uid, msg)
	case msg.Text != "":
		// Free text means an identifier or a price depending on where the
		// conversation stands; the session table rejects it elsewhere.
		kind := session.TextEventKind(r.Sessions.StateOf(uid))
		r.dispatch(cid, uid, session.Event{Kind: kind, Text: msg.Text})
	}
}

func (r *Router) handleCommand(cid, uid int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		r.send(cid, "pong")
	case "new":
		r.dispatch(cid, uid, session.Event{Kind: session.EventStart})
	case "prices":
		r.dispatch(cid, uid, session.Event{Kind: session.EventPriceMode})
	case "save":
		r.dispatch(cid, uid, session.Event{Kind: session.EventSave})
	case "cancel":
		r.dispatch(cid, uid, session.Event{Kind: session.EventCancel})
	case "status":
		r.dispatch(cid, uid, session.Event{Kind: session.EventStatus})
	default:
		r.send(cid, "Unknown command. Use /new, /prices, /save, /cancel or /status.")
	}
}

func (r *Router) handlePhoto(cid, uid int64, msg *tgbotapi.Message) {
	data, err := r.photoBytes(msg)
	if err != nil {
		r.Log.Warn("photo download failed", "user", uid, "err", err)
		r.send(cid, "Could not download that photo from Telegram. Send it again.")
		return
	}
	r.dispatch(cid, uid, session.Event{Kind: session.EventPhoto, Photo: data})
}

func (r *Router) dispatch(cid, uid int64, ev session.Event) {
	reply, err := r.Sessions.Handle(context.Background(), uid, ev)
	if err != nil {
		r.send(cid, errorText(err))
		return
	}
	r.send(cid, reply)
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn("send failed", "chat", chatID, "err", err)
	}
}

// errorText maps the session error taxonomy to a user-visible reply. No
// failure stays silent.
func errorText(err error) string {
	var ve *session.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var ee *session.ExternalError
	if errors.As(err, &ee) {
		return fmt.Sprintf("%s failed: %v. Your draft is kept, try again.", ee.Op, ee.Err)
	}
	return "Something went wrong. Try again."
}
