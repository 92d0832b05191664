package models

import "time"

// UserStatus is a user's presence state.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
)

// User is an application user as stored in the users collection. Presence is
// embedded in the user record and written only by the owning client, so every
// presence update is a plain last-write-wins merge.
type User struct {
	ID             string    `bson:"_id" json:"id"`
	UserName       string    `bson:"userName" json:"userName"`
	FullName       string    `bson:"fullName" json:"fullName"`
	Email          string    `bson:"email" json:"email"`
	Avatar         string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	HashedPassword string    `bson:"hashedPassword" json:"-"`
	IsOnline       bool      `bson:"isOnline" json:"isOnline"`
	LastSeen       time.Time `bson:"lastSeen" json:"lastSeen"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PublicUser is the safe representation returned via APIs.
type PublicUser struct {
	ID       string    `json:"id"`
	UserName string    `json:"userName"`
	FullName string    `json:"fullName"`
	Avatar   string    `json:"avatar,omitempty"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

func (u *User) ToPublicUser() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		UserName: u.UserName,
		FullName: u.FullName,
		Avatar:   u.Avatar,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// CurrentUser is the authenticated identity the view layer acts as. It is
// resolved by the session store at startup; chat operations require it.
type CurrentUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
}

// CreateUserRequest captures registration input.
type CreateUserRequest struct {
	UserName string `json:"userName" binding:"required,min=3,max=50"`
	FullName string `json:"fullName" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginUserRequest captures login input.
type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// PresenceRequest is the payload for explicit presence updates.
type PresenceRequest struct {
	Status UserStatus `json:"status" binding:"required,oneof=online offline"`
}
