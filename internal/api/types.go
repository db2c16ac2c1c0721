package api

import (
	"encoding/json"
	"time"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatar,omitempty"`
	CoverURL     string    `json:"coverPhoto,omitempty"`
	Verified     bool      `json:"isVerified,omitempty"`
	OnlineStatus string    `json:"onlineStatus,omitempty"`
	LastSeenAt   time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageSystem MessageType = "SYSTEM"
)

type MessageContent struct {
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Type           MessageType    `json:"type"`
	Content        MessageContent `json:"content"`
	Deleted        bool           `json:"isDeleted,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt,omitempty"`
}

type ConversationType string

const (
	ConversationPrivate ConversationType = "PRIVATE"
	ConversationGroup   ConversationType = "GROUP"
)

type LastMessage struct {
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Conversation struct {
	ID              string           `json:"id"`
	Type            ConversationType `json:"type"`
	Name            string           `json:"name,omitempty"`
	AvatarURL       string           `json:"avatar,omitempty"`
	OtherUserID     string           `json:"otherUserId,omitempty"`
	OtherUserName   string           `json:"otherUserName,omitempty"`
	OtherUserAvatar string           `json:"otherUserAvatar,omitempty"`
	CreatedBy       string           `json:"createdBy,omitempty"`
	MemberCount     int              `json:"memberCount,omitempty"`
	LastMessage     *LastMessage     `json:"lastMessage,omitempty"`
	Deleted         bool             `json:"isDeleted,omitempty"`
	CreatedAt       time.Time        `json:"createdAt,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt,omitempty"`
}

// MemberSettings is the caller's per-conversation state: unread counter and
// the mute/pin flags the list is sorted and badged by.
type MemberSettings struct {
	UserID      string `json:"userId,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	Role        string `json:"role,omitempty"`
	Muted       bool   `json:"isMuted"`
	Pinned      bool   `json:"isPinned"`
	Blocked     bool   `json:"isConversationBlocked,omitempty"`
	UnreadCount int    `json:"unreadCount"`
}

// ConversationSummary pairs a conversation with the caller's settings for
// it, exactly as the list endpoint returns them.
type ConversationSummary struct {
	Conversation   Conversation   `json:"conversation"`
	MemberSettings MemberSettings `json:"memberSettings"`
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ID        string              `json:"id"`
	Sender    User                `json:"senderId"`
	Receiver  User                `json:"receiverId"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt,omitempty"`
}

type Friend struct {
	ID        string    `json:"id"`
	Friend    User      `json:"friend"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title,omitempty"`
	Body      string          `json:"body,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PageInfo is the server's flat page descriptor. There is no has-more field
// on the wire, callers derive it.
type PageInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// HasMore reports whether pages beyond this one exist.
func (p PageInfo) HasMore() bool { return p.Page < p.TotalPages }

type MessagePage struct {
	Messages []Message `json:"messages"`
	PageInfo
}

type ConversationPage struct {
	Conversations []ConversationSummary `json:"conversations"`
	PageInfo
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	PageInfo
}

type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	User         User     `json:"user"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Session      *Session `json:"session,omitempty"`
}

type Session struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"deviceId"`
	DeviceName   string    `json:"deviceName"`
	DeviceType   string    `json:"deviceType"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	LastActiveAt time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}
