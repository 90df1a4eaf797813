package domain

import "time"

const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeFile  = "file"
)

func ValidType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeFile:
		return true
	}
	return false
}

// Message is the persisted record of one direct message. Edits only ever
// touch Content, Edited and EditedAt; everything else is immutable.
type Message struct {
	ID         string     `bson:"_id" json:"id"`
	SenderID   string     `bson:"sender_id" json:"senderId"`
	ReceiverID string     `bson:"receiver_id" json:"receiverId"`
	Content    string     `bson:"content" json:"content"`
	Type       string     `bson:"type" json:"type"`
	FileURL    string     `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	FileSize   int64      `bson:"file_size,omitempty" json:"fileSize,omitempty"`
	Timestamp  time.Time  `bson:"timestamp" json:"timestamp"`
	Edited     bool       `bson:"edited" json:"edited"`
	EditedAt   *time.Time `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
}

// UserSummary is the directory view of a counterpart. The messaging service
// never owns user records; these come from the user-service lookup.
type UserSummary struct {
	ID           string `bson:"_id" json:"id"`
	Username     string `bson:"username" json:"username"`
	ProfileImage string `bson:"profile_image,omitempty" json:"profileImage,omitempty"`
	Status       string `bson:"status,omitempty" json:"status,omitempty"`
}

// Conversation is derived per request, never stored.
type Conversation struct {
	UserData    UserSummary `json:"userData"`
	LastMessage *Message    `json:"lastMessage"`
}
