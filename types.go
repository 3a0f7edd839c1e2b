package youbuidl

// Table names of the backing store. Change-feed events carry the table they
// originate from so consumers can route them without inspecting the payload.
const (
	TableComments      = "comments"
	TableCommentLikes  = "comment_likes"
	TableDomainUpvotes = "domain_upvotes"
)

// TempIDPrefix marks locally generated comment ids that are pending remote
// confirmation.
const TempIDPrefix = "temp-"

// Author identifies who wrote a comment. Address is the only required field
// and is always a lowercase-normalized hex account address.
type Author struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Comment is a single comment on an entity. Replies nest exactly one level:
// a Comment in Replies never has Replies of its own.
type Comment struct {
	ID             string    `json:"id"`
	EntityID       string    `json:"entityId"`
	ParentID       string    `json:"parentId,omitempty"`
	Author         Author    `json:"author"`
	Content        string    `json:"content"`
	Timestamp      int64     `json:"timestamp"` // milliseconds since epoch
	LikeCount      int       `json:"likeCount"`
	ViewerHasLiked bool      `json:"viewerHasLiked,omitempty"`
	Replies        []Comment `json:"replies,omitempty"`
}

// IsTemporary reports whether the comment still carries a locally generated
// id, i.e. its remote insert has not settled yet.
func (c Comment) IsTemporary() bool {
	return len(c.ID) > len(TempIDPrefix) && c.ID[:len(TempIDPrefix)] == TempIDPrefix
}

// UpvoteState is the aggregate upvote view for one entity.
type UpvoteState struct {
	Count            int  `json:"count"`
	ViewerHasUpvoted bool `json:"viewerHasUpvoted"`
}

// EventKind classifies a change-feed row notification.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// UpvoteRow is the payload of a domain_upvotes change event.
type UpvoteRow struct {
	EntityID    string `json:"entityId"`
	UserAddress string `json:"userAddress"`
}

// Event is a single row-level change notification. Exactly one of Comment or
// Upvote is set, depending on Table.
type Event struct {
	Kind     EventKind  `json:"kind"`
	Table    string     `json:"table"`
	EntityID string     `json:"entityId"`
	Comment  *Comment   `json:"comment,omitempty"`
	Upvote   *UpvoteRow `json:"upvote,omitempty"`
}
