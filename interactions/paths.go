package interactions

import (
	youbuidl "github.com/givestation/youbuidl-sync"
)

// commentPath addresses one comment in an entity's tree. Top is the index in
// the top-level list; Reply is the index within that comment's replies, or -1
// for a top-level comment. Replies nest exactly one level.
type commentPath struct {
	Top   int
	Reply int
}

func (p commentPath) topLevel() bool { return p.Reply < 0 }

// findComment resolves an id across both nesting levels with a single scan.
func findComment(list []youbuidl.Comment, id string) (commentPath, bool) {
	for i := range list {
		if list[i].ID == id {
			return commentPath{Top: i, Reply: -1}, true
		}
		for j := range list[i].Replies {
			if list[i].Replies[j].ID == id {
				return commentPath{Top: i, Reply: j}, true
			}
		}
	}
	return commentPath{}, false
}

// mutateAt applies fn to the comment at p, cloning the containers on the way
// down so snapshots handed out earlier stay untouched.
func mutateAt(list []youbuidl.Comment, p commentPath, fn func(*youbuidl.Comment)) []youbuidl.Comment {
	next := make([]youbuidl.Comment, len(list))
	copy(next, list)
	if p.topLevel() {
		fn(&next[p.Top])
		return next
	}
	replies := make([]youbuidl.Comment, len(next[p.Top].Replies))
	copy(replies, next[p.Top].Replies)
	fn(&replies[p.Reply])
	next[p.Top].Replies = replies
	return next
}

// removeAt deletes the comment at p, cloning the affected containers.
func removeAt(list []youbuidl.Comment, p commentPath) []youbuidl.Comment {
	if p.topLevel() {
		next := make([]youbuidl.Comment, 0, len(list)-1)
		next = append(next, list[:p.Top]...)
		next = append(next, list[p.Top+1:]...)
		return next
	}
	return mutateAt(list, commentPath{Top: p.Top, Reply: -1}, func(c *youbuidl.Comment) {
		replies := make([]youbuidl.Comment, 0, len(c.Replies)-1)
		replies = append(replies, c.Replies[:p.Reply]...)
		replies = append(replies, c.Replies[p.Reply+1:]...)
		c.Replies = replies
	})
}

// appendTop appends c to the top-level list without disturbing snapshots.
func appendTop(list []youbuidl.Comment, c youbuidl.Comment) []youbuidl.Comment {
	next := make([]youbuidl.Comment, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, c)
	return next
}

// prependTop inserts c at the head of the top-level list.
func prependTop(list []youbuidl.Comment, c youbuidl.Comment) []youbuidl.Comment {
	next := make([]youbuidl.Comment, 0, len(list)+1)
	next = append(next, c)
	next = append(next, list...)
	return next
}

// appendReply appends c to the replies of the top-level comment at p.Top.
func appendReply(list []youbuidl.Comment, p commentPath, c youbuidl.Comment) []youbuidl.Comment {
	return mutateAt(list, commentPath{Top: p.Top, Reply: -1}, func(parent *youbuidl.Comment) {
		replies := make([]youbuidl.Comment, 0, len(parent.Replies)+1)
		replies = append(replies, parent.Replies...)
		replies = append(replies, c)
		parent.Replies = replies
	})
}
