package models

import (
	"time"
)

type Comment struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text"`
	EntityID      string    `json:"entityId" gorm:"type:text;index"`
	AuthorAddress string    `json:"authorAddress" gorm:"type:text;index"`
	ParentID      *string   `json:"parentId" gorm:"type:text;index"`
	Content       string    `json:"content" gorm:"type:text"`
	LikesCount    int       `json:"likesCount" gorm:"type:integer;not null;default:0"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type CommentLike struct {
	CommentID   string    `json:"commentId" gorm:"type:text;primaryKey"`
	Comment     Comment   `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	UserAddress string    `json:"userAddress" gorm:"type:text;index;primaryKey"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type DomainUpvote struct {
	EntityID    string    `json:"entityId" gorm:"type:text;primaryKey"`
	UserAddress string    `json:"userAddress" gorm:"type:text;index;primaryKey"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
