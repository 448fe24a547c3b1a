package httpapi

import (
	"strconv"
	"time"

	"github.com/hermes-hub/hermes/internal/v1/store"
)

// REST responses carry numeric ids; realtime event payloads carry decimal
// strings so JavaScript clients never lose precision. Both renderings of a
// message live here so handlers and the broker stay in sync.

// UserView is the public shape of a user. Email appears only on the @me
// endpoints.
type UserView struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Status      string  `json:"status"`
	AvatarURL   string  `json:"avatar_url"`
	Email       *string `json:"email,omitempty"`
}

func newPublicUserView(u *store.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Status:      u.Status,
		AvatarURL:   u.AvatarURL,
	}
}

func newPrivateUserView(u *store.User) UserView {
	v := newPublicUserView(u)
	v.Email = u.Email
	return v
}

// ServerView is the REST shape of a server.
type ServerView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IconURL   string    `json:"icon_url"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newServerView(s *store.Server) ServerView {
	return ServerView{
		ID:        s.ID,
		Name:      s.Name,
		IconURL:   s.IconURL,
		OwnerID:   s.OwnerID,
		CreatedAt: s.CreatedAt,
	}
}

// ChannelView is the REST shape of a channel.
type ChannelView struct {
	ID        int64             `json:"id"`
	ServerID  int64             `json:"server_id"`
	Name      string            `json:"name"`
	Type      store.ChannelType `json:"type"`
	Position  int               `json:"position"`
	CreatedAt time.Time         `json:"created_at"`
}

func newChannelView(ch *store.Channel) ChannelView {
	return ChannelView{
		ID:        ch.ID,
		ServerID:  ch.ServerID,
		Name:      ch.Name,
		Type:      ch.Type,
		Position:  ch.Position,
		CreatedAt: ch.CreatedAt,
	}
}

// AuthorView nests inside a message.
type AuthorView struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// MessageView is the REST shape of a message.
type MessageView struct {
	ID        int64      `json:"id"`
	ChannelID int64      `json:"channel_id"`
	Author    AuthorView `json:"author"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at"`
}

func newMessageView(m *store.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Author: AuthorView{
			ID:          m.Author.ID,
			Username:    m.Author.Username,
			DisplayName: m.Author.DisplayName,
			AvatarURL:   m.Author.AvatarURL,
		},
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
	}
}

// messageEventAuthor and messageEventView mirror the REST shapes with string
// ids for MESSAGE_CREATE / MESSAGE_UPDATE payloads.
type messageEventAuthor struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type messageEventView struct {
	ID        string             `json:"id"`
	ChannelID string             `json:"channel_id"`
	Author    messageEventAuthor `json:"author"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
	EditedAt  *time.Time         `json:"edited_at"`
}

func newMessageEventView(m *store.Message) messageEventView {
	return messageEventView{
		ID:        strconv.FormatInt(m.ID, 10),
		ChannelID: strconv.FormatInt(m.ChannelID, 10),
		Author: messageEventAuthor{
			ID:          strconv.FormatInt(m.Author.ID, 10),
			Username:    m.Author.Username,
			DisplayName: m.Author.DisplayName,
			AvatarURL:   m.Author.AvatarURL,
		},
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
	}
}
