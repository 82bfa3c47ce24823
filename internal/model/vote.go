package model

import "time"

// Vote values. A zero value clears a user's vote.
const (
	VoteDislike = -1
	VoteNone    = 0
	VoteLike    = 1
)

// Vote is a user's like or dislike on an email.
type Vote struct {
	ID        int64     `json:"id" db:"id"`
	EmailID   int64     `json:"email_id" db:"email_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Value     int       `json:"value" db:"value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Vote status labels.
const (
	VoteStatusLikeALot = "likealot"
	VoteStatusLike     = "like"
	VoteStatusNeutral  = "neutral"
)

// VoteSummary aggregates the votes on an email or a thread.
type VoteSummary struct {
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Status   string `json:"status"`
}

// NewVoteSummary builds a summary and derives its status from the balance
// of likes over dislikes.
func NewVoteSummary(likes, dislikes int) VoteSummary {
	status := VoteStatusNeutral
	switch balance := likes - dislikes; {
	case balance >= 10:
		status = VoteStatusLikeALot
	case balance > 0:
		status = VoteStatusLike
	}
	return VoteSummary{Likes: likes, Dislikes: dislikes, Status: status}
}
