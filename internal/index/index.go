// Package index feeds archived emails to a full-text search index.
// Changes are queued in the archive database as they are committed and
// sent to the indexer in batches, so an unavailable indexer delays search
// results but never blocks archiving.
package index

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/nhle/listarchive/internal/log"
)

// Document is the searchable form of an email. Every document carries the
// list it belongs to.
type Document struct {
	ListName      string    `json:"list_name"`
	EmailID       int64     `json:"email_id"`
	MessageIDHash string    `json:"message_id_hash"`
	ThreadID      int64     `json:"thread_id"`
	Sender        string    `json:"sender"`
	SenderName    string    `json:"sender_name"`
	Subject       string    `json:"subject"`
	Date          time.Time `json:"date"`
	Content       string    `json:"content"`
}

// Indexer receives index changes.
type Indexer interface {
	Update(ctx context.Context, docs []Document) error
	Remove(ctx context.Context, listName string, emailIDs []int64) error
}

// LogIndexer only logs what would be indexed. It is used when no index is
// configured.
type LogIndexer struct {
	logger log.Logger
}

func NewLogIndexer() *LogIndexer {
	return &LogIndexer{logger: log.NewLogger("index")}
}

func (l *LogIndexer) Update(_ context.Context, docs []Document) error {
	for _, d := range docs {
		l.logger.Debugf("index %s/%d %q", d.ListName, d.EmailID, d.Subject)
	}
	return nil
}

func (l *LogIndexer) Remove(_ context.Context, listName string, emailIDs []int64) error {
	l.logger.Debugf("unindex %d emails of %s", len(emailIDs), listName)
	return nil
}

// terms splits text into the lowercase words that are indexed.
func terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func (d Document) terms() []string {
	return terms(d.Subject + " " + d.SenderName + " " + d.Sender + " " + d.Content)
}
