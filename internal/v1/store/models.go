package store

import "time"

// ChannelType distinguishes conversational surfaces. Stored as TEXT.
type ChannelType string

const (
	ChannelText  ChannelType = "TEXT"
	ChannelVoice ChannelType = "VOICE"
)

// GhostDisplayName replaces the display name of a deleted account. Messages
// authored by a ghost still resolve their author through the preserved row.
const GhostDisplayName = "Deleted User"

// GhostUsernamePrefix prefixes the renamed username of a deleted account.
const GhostUsernamePrefix = "ghost_"

// User is an account row. Email and PasswordHash are nil once ghosted.
type User struct {
	ID           int64
	Username     string
	Email        *string
	DisplayName  string
	Status       string
	AvatarURL    string
	PasswordHash *string
	Deleted      bool
	CreatedAt    time.Time
}

// Session is an opaque-token login. The token is the primary key.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Server is a tenant community.
type Server struct {
	ID        int64
	Name      string
	IconURL   string
	OwnerID   int64
	CreatedAt time.Time
}

// Membership ties a user to a server. Active iff LeftAt is nil.
type Membership struct {
	UserID   int64
	ServerID int64
	JoinedAt time.Time
	LeftAt   *time.Time
}

// Active reports whether the membership is current.
func (m *Membership) Active() bool { return m.LeftAt == nil }

// Channel is a named conversational surface within a server.
type Channel struct {
	ID        int64
	ServerID  int64
	Name      string
	Type      ChannelType
	Position  int
	CreatedAt time.Time
}

// Author is the subset of a user rendered inside a message view.
type Author struct {
	ID          int64
	Username    string
	DisplayName string
	AvatarURL   string
}

// Message is a posted message with its resolved author.
type Message struct {
	ID        int64
	ChannelID int64
	Author    Author
	Content   string
	CreatedAt time.Time
	EditedAt  *time.Time
}
