package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/normalize"
	"github.com/nhle/listarchive/internal/store"
)

// ThreadSummary is what a thread listing shows for one thread.
type ThreadSummary struct {
	Thread            model.Thread
	Subject           string
	EmailsCount       int
	ParticipantsCount int
	Votes             model.VoteSummary
	VotesTotal        int
}

// List returns a mailing list by posting address.
func (a *Archiver) List(ctx context.Context, name string) (*model.MailingList, error) {
	return a.store.GetMailingList(ctx, name)
}

// Email returns an email by id.
func (a *Archiver) Email(ctx context.Context, id int64) (*model.Email, error) {
	return a.store.GetEmail(ctx, id)
}

// EmailByHash returns an email of a list by Message-ID hash.
func (a *Archiver) EmailByHash(ctx context.Context, listName, hash string) (*model.Email, error) {
	list, err := a.store.GetMailingList(ctx, listName)
	if err != nil {
		return nil, err
	}
	return a.store.GetEmailByHash(ctx, list.ID, hash)
}

// ThreadEmails returns the emails of a thread in display order.
func (a *Archiver) ThreadEmails(ctx context.Context, threadID int64) ([]model.Email, error) {
	return a.store.GetThreadEmails(ctx, threadID)
}

// ThreadSummary returns a thread with its cached aggregates.
func (a *Archiver) ThreadSummary(ctx context.Context, threadID int64) (*ThreadSummary, error) {
	thread, err := a.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	sum := &ThreadSummary{Thread: *thread}
	if sum.Subject, err = a.stats.ThreadSubject(threadID).Get(ctx); err != nil {
		return nil, err
	}
	if sum.EmailsCount, err = a.stats.ThreadEmailsCount(threadID).Get(ctx); err != nil {
		return nil, err
	}
	if sum.ParticipantsCount, err = a.stats.ThreadParticipantsCount(threadID).Get(ctx); err != nil {
		return nil, err
	}
	if sum.Votes, err = a.stats.ThreadVotes(threadID).Get(ctx); err != nil {
		return nil, err
	}
	if sum.VotesTotal, err = a.stats.ThreadVotesTotal(threadID).Get(ctx); err != nil {
		return nil, err
	}
	return sum, nil
}

// EmailVotes returns the vote summary of an email.
func (a *Archiver) EmailVotes(ctx context.Context, emailID int64) (model.VoteSummary, error) {
	return a.stats.EmailVotes(emailID).Get(ctx)
}

// RecentThreads returns the ids of the threads of a list active in the
// last weeks, most recent first.
func (a *Archiver) RecentThreads(ctx context.Context, listName string) ([]int64, error) {
	list, err := a.store.GetMailingList(ctx, listName)
	if err != nil {
		return nil, err
	}
	return a.stats.RecentThreads(list.ID).Get(ctx)
}

// TopThreads returns the recent threads with the most emails.
func (a *Archiver) TopThreads(ctx context.Context, listName string) ([]int64, error) {
	list, err := a.store.GetMailingList(ctx, listName)
	if err != nil {
		return nil, err
	}
	return a.stats.TopThreads(list.ID).Get(ctx)
}

// PopularThreads returns the recent threads with the best vote balance.
func (a *Archiver) PopularThreads(ctx context.Context, listName string) ([]int64, error) {
	list, err := a.store.GetMailingList(ctx, listName)
	if err != nil {
		return nil, err
	}
	return a.stats.PopularThreads(list.ID).Get(ctx)
}

// TopPosters returns the most active recent senders of a list.
func (a *Archiver) TopPosters(ctx context.Context, listName string) ([]store.PosterCount, error) {
	list, err := a.store.GetMailingList(ctx, listName)
	if err != nil {
		return nil, err
	}
	return a.stats.TopPosters(list.ID).Get(ctx)
}

// AsMessage writes an archived email back out as an RFC 5322 message.
func (a *Archiver) AsMessage(ctx context.Context, emailID int64, w io.Writer) error {
	email, err := a.store.GetEmail(ctx, emailID)
	if err != nil {
		return err
	}
	list, err := a.store.GetMailingListByID(ctx, email.MailingListID)
	if err != nil {
		return err
	}
	sender, err := a.store.GetSender(ctx, email.SenderID)
	if err != nil {
		return err
	}
	atts, err := a.store.GetAttachments(ctx, email.ID)
	if err != nil {
		return err
	}

	stored := normalize.Stored{
		ListName:      list.Name,
		SenderAddress: sender.Address,
		SenderName:    email.SenderName,
		Subject:       email.Subject,
		Date:          email.Date,
		Timezone:      email.Timezone,
		MessageID:     email.MessageID,
		InReplyTo:     email.InReplyTo,
		Content:       email.Content,
	}
	for _, att := range atts {
		content, err := a.attachmentContent(list.Name, email, att)
		if err != nil {
			return err
		}
		stored.Attachments = append(stored.Attachments, normalize.StoredAttachment{
			Name:        att.Name,
			ContentType: att.ContentType,
			Content:     content,
		})
	}

	if err := normalize.Format(w, stored); err != nil {
		return fmt.Errorf("formatting email %d: %w", emailID, err)
	}
	return nil
}
