package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/internal/tasks"
)

type ingested struct {
	list          *model.MailingList
	sender        *model.Sender
	email         *model.Email
	threadCreated bool
}

// Ingest stores a normalized message in the archive of listName and
// returns its Message-ID hash. Re-ingesting a message fails with a
// *DuplicateMessageError and changes nothing.
func (a *Archiver) Ingest(ctx context.Context, listName string, msg *model.NormalizedMessage) (string, error) {
	res, err := a.ingest(ctx, listName, msg, false)
	if err != nil {
		return "", err
	}

	a.schedule(ctx, tasks.KindSyncList, tasks.ListPayload{ListName: res.list.Name})
	if res.sender.MailmanID == nil {
		a.schedule(ctx, tasks.KindSyncSender, tasks.SenderPayload{SenderID: res.sender.ID})
	}
	a.publishIngest(res, false)

	return res.email.MessageIDHash, nil
}

func (a *Archiver) publishIngest(res *ingested, batch bool) {
	if res.threadCreated {
		a.bus.Emit(events.Event{
			Type:     events.EvThreadAdded,
			ListName: res.list.Name,
			ListID:   res.list.ID,
			ThreadID: res.email.ThreadID,
			EmailID:  res.email.ID,
			Date:     res.email.Date,
			Batch:    batch,
		})
	}
	a.bus.Emit(events.Event{
		Type:          events.EvEmailAdded,
		ListName:      res.list.Name,
		ListID:        res.list.ID,
		EmailID:       res.email.ID,
		ThreadID:      res.email.ThreadID,
		Date:          res.email.Date,
		ThreadCreated: res.threadCreated,
		Batch:         batch,
	})
}

func (a *Archiver) ingest(
	ctx context.Context,
	listName string,
	msg *model.NormalizedMessage,
	batch bool,
) (*ingested, error) {
	res := &ingested{}
	var written []string

	err := a.store.InTx(ctx, func(q store.Querier) error {
		var err error
		res.list, _, err = q.GetOrCreateMailingList(ctx, listName)
		if err != nil {
			return err
		}
		if res.list.ArchivePolicy == model.ArchivePolicyNever {
			return fmt.Errorf("%s: %w", listName, ErrArchivingDisabled)
		}

		exists, err := q.EmailExists(ctx, res.list.ID, msg.MessageID)
		if err != nil {
			return err
		}
		if exists {
			return &DuplicateMessageError{MessageID: msg.MessageID, Hash: msg.MessageIDHash}
		}

		res.sender, err = q.GetOrCreateSender(ctx, msg.SenderAddress)
		if err != nil {
			return err
		}

		thread, parentID, created, err := a.resolveThread(ctx, q, res.list, msg)
		if err != nil {
			return err
		}
		res.threadCreated = created

		archived := time.Now().UTC()
		if msg.ArchivedDate != nil {
			archived = msg.ArchivedDate.UTC()
		}
		e := &model.Email{
			MailingListID: res.list.ID,
			MessageID:     msg.MessageID,
			MessageIDHash: msg.MessageIDHash,
			SenderID:      res.sender.ID,
			SenderName:    msg.SenderName,
			Subject:       msg.Subject,
			Content:       msg.Content,
			InReplyTo:     msg.InReplyTo,
			ParentID:      parentID,
			ThreadID:      thread.ID,
			Date:          msg.Date.UTC(),
			Timezone:      msg.TimezoneOffset,
			ArchivedDate:  archived,
		}
		if err := q.InsertEmail(ctx, e); err != nil {
			if store.IsUniqueViolation(err) {
				// Another producer archived it first.
				if dup, _ := q.EmailExists(ctx, res.list.ID, msg.MessageID); dup {
					return &DuplicateMessageError{MessageID: msg.MessageID, Hash: msg.MessageIDHash}
				}
				return integrity(err)
			}
			return err
		}
		res.email = e

		written, err = a.storeAttachments(ctx, q, res.list.Name, e, msg.Attachments)
		if err != nil {
			return err
		}

		if e.Date.After(thread.DateActive) {
			thread.DateActive = e.Date
		}
		if thread.StartingEmailID == nil {
			if e.ParentID == nil {
				thread.StartingEmailID = &e.ID
			} else if thread.StartingEmailID, err = startingEmail(ctx, q, thread.ID); err != nil {
				return err
			}
		}
		return q.UpdateThread(ctx, *thread)
	})
	if err != nil {
		if len(written) > 0 {
			a.logger.Warnf("%d attachment files of %s left after rollback", len(written), msg.MessageID)
		}
		var dup *DuplicateMessageError
		if errors.As(err, &dup) {
			a.logger.Debugf("%s already archived in %s", msg.MessageID, listName)
			return nil, err
		}
		return nil, fmt.Errorf("archiving %s in %s: %w", msg.MessageID, listName, wrapTx(err))
	}

	a.logger.Debugf("archived %s in %s (thread %d)", msg.MessageID, listName, res.email.ThreadID)
	return res, nil
}

// resolveThread finds where a new email goes: under the email it replies
// to when the list has it, else at the root of its own thread.
func (a *Archiver) resolveThread(
	ctx context.Context,
	q store.Querier,
	list *model.MailingList,
	msg *model.NormalizedMessage,
) (*model.Thread, *int64, bool, error) {
	if msg.InReplyTo != nil {
		parent, err := q.GetEmailByMessageID(ctx, list.ID, *msg.InReplyTo)
		switch {
		case err == nil:
			thread, err := q.GetThread(ctx, parent.ThreadID)
			if err != nil {
				return nil, nil, false, err
			}
			return thread, &parent.ID, false, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, nil, false, err
		}
	}

	thread, err := q.GetThreadByThreadID(ctx, list.ID, msg.MessageIDHash)
	if err == nil {
		return thread, nil, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, false, err
	}
	thread = &model.Thread{
		MailingListID: list.ID,
		ThreadID:      msg.MessageIDHash,
		DateActive:    msg.Date.UTC(),
	}
	if err := q.CreateThread(ctx, thread); err != nil {
		return nil, nil, false, err
	}
	return thread, nil, true, nil
}

// storeAttachments inserts the attachments of e, skipping counters already
// stored, and returns the files written to the attachment folder.
func (a *Archiver) storeAttachments(
	ctx context.Context,
	q store.Querier,
	listName string,
	e *model.Email,
	atts []model.AttachmentData,
) ([]string, error) {
	dir := a.attachmentDir(listName, e)
	var written []string
	for _, data := range atts {
		exists, err := q.AttachmentExists(ctx, e.ID, data.Counter)
		if err != nil {
			return written, err
		}
		if exists {
			continue
		}
		att := &model.Attachment{
			EmailID:     e.ID,
			Counter:     data.Counter,
			Name:        data.Name,
			ContentType: data.ContentType,
			Size:        int64(len(data.Content)),
			Content:     data.Content,
		}
		if data.Encoding != "" {
			enc := data.Encoding
			att.Encoding = &enc
		}
		if dir != "" {
			if err := a.writeAttachment(dir, data.Counter, data.Content); err != nil {
				return written, err
			}
			written = append(written, dir)
			att.Content = nil
		}
		if err := q.InsertAttachment(ctx, att); err != nil {
			return written, err
		}
	}
	return written, nil
}

// startingEmail returns the root of a thread, or its earliest email when
// it has no root. It returns nil for an empty thread.
func startingEmail(ctx context.Context, q store.Querier, threadID int64) (*int64, error) {
	nodes, err := q.GetThreadNodes(ctx, threadID)
	if err != nil {
		return nil, err
	}
	var earliest *store.EmailNode
	for i := range nodes {
		n := &nodes[i]
		if n.ParentID == nil {
			return &n.ID, nil
		}
		if earliest == nil || n.Date.Before(earliest.Date) ||
			(n.Date.Equal(earliest.Date) && n.ID < earliest.ID) {
			earliest = n
		}
	}
	if earliest == nil {
		return nil, nil
	}
	return &earliest.ID, nil
}
