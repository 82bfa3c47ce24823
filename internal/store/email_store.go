package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/listarchive/internal/model"
)

// InsertEmail inserts e and sets its ID. Positions are left unset until
// the thread is recomputed.
func (q *Queries) InsertEmail(ctx context.Context, e *model.Email) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO emails (
			mailinglist_id, message_id, message_id_hash,
			sender_id, sender_name, subject, content,
			in_reply_to, parent_id, thread_id,
			date, timezone, archived_date,
			thread_order, thread_depth
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.MailingListID, e.MessageID, e.MessageIDHash,
		e.SenderID, e.SenderName, e.Subject, e.Content,
		e.InReplyTo, e.ParentID, e.ThreadID,
		e.Date.UTC(), e.Timezone, e.ArchivedDate.UTC(),
		e.ThreadOrder, e.ThreadDepth,
	)
	if err != nil {
		return fmt.Errorf("inserting email %s: %w", e.MessageID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading email id: %w", err)
	}
	e.ID = id
	return nil
}

// GetEmail retrieves an email by row id.
func (q *Queries) GetEmail(ctx context.Context, id int64) (*model.Email, error) {
	var e model.Email
	err := sqlx.GetContext(ctx, q.db, &e, "SELECT * FROM emails WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting email %d: %w", id, notFound(err))
	}
	return &e, nil
}

// GetEmailByMessageID retrieves an email by Message-ID within a list.
func (q *Queries) GetEmailByMessageID(
	ctx context.Context,
	listID int64,
	messageID string,
) (*model.Email, error) {
	var e model.Email
	err := sqlx.GetContext(ctx, q.db, &e,
		"SELECT * FROM emails WHERE mailinglist_id = ? AND message_id = ?",
		listID, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting email %s: %w", messageID, notFound(err))
	}
	return &e, nil
}

// GetEmailByHash retrieves an email by Message-ID hash within a list.
func (q *Queries) GetEmailByHash(
	ctx context.Context,
	listID int64,
	hash string,
) (*model.Email, error) {
	var e model.Email
	err := sqlx.GetContext(ctx, q.db, &e,
		"SELECT * FROM emails WHERE mailinglist_id = ? AND message_id_hash = ?",
		listID, hash,
	)
	if err != nil {
		return nil, fmt.Errorf("getting email %s: %w", hash, notFound(err))
	}
	return &e, nil
}

// EmailExists reports whether a list already archived messageID.
func (q *Queries) EmailExists(ctx context.Context, listID int64, messageID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n,
		"SELECT COUNT(*) FROM emails WHERE mailinglist_id = ? AND message_id = ?",
		listID, messageID,
	)
	if err != nil {
		return false, fmt.Errorf("checking email %s: %w", messageID, err)
	}
	return n > 0, nil
}

// GetThreadNodes returns the structural fields of every email in a thread.
func (q *Queries) GetThreadNodes(ctx context.Context, threadID int64) ([]EmailNode, error) {
	var nodes []EmailNode
	err := sqlx.SelectContext(ctx, q.db, &nodes, `
		SELECT id, parent_id, date, thread_order, thread_depth
		FROM emails WHERE thread_id = ?`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying nodes of thread %d: %w", threadID, err)
	}
	return nodes, nil
}

// GetThreadEmails returns the emails of a thread in display order.
// Emails not positioned yet come last, by date.
func (q *Queries) GetThreadEmails(ctx context.Context, threadID int64) ([]model.Email, error) {
	var emails []model.Email
	err := sqlx.SelectContext(ctx, q.db, &emails, `
		SELECT * FROM emails WHERE thread_id = ?
		ORDER BY thread_order IS NULL, thread_order, date, id`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying emails of thread %d: %w", threadID, err)
	}
	return emails, nil
}

// SetEmailParent re-points the parent of an email; nil makes it a root.
func (q *Queries) SetEmailParent(ctx context.Context, id int64, parentID *int64) error {
	result, err := q.db.ExecContext(ctx, "UPDATE emails SET parent_id = ? WHERE id = ?", parentID, id)
	if err != nil {
		return fmt.Errorf("setting parent of email %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("setting parent of email %d: %w", id, ErrNotFound)
	}
	return nil
}

// MoveEmailsToThread reassigns the given emails to another thread.
func (q *Queries) MoveEmailsToThread(ctx context.Context, ids []int64, threadID int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := inClause("UPDATE emails SET thread_id = ? WHERE id IN (?)", ids, threadID)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("moving %d emails to thread %d: %w", len(ids), threadID, err)
	}
	return nil
}

// SetEmailPositions writes thread_order and thread_depth for a batch of
// emails.
func (q *Queries) SetEmailPositions(ctx context.Context, positions []Position) error {
	if len(positions) == 0 {
		return nil
	}
	stmt, err := sqlx.PreparexContext(ctx, q.db,
		"UPDATE emails SET thread_order = ?, thread_depth = ? WHERE id = ?",
	)
	if err != nil {
		return fmt.Errorf("preparing position update: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, p.Order, p.Depth, p.EmailID); err != nil {
			return fmt.Errorf("updating position of email %d: %w", p.EmailID, err)
		}
	}
	return nil
}

// FindOrphans returns the parentless emails of a list that reply to
// messageID, other than excludeID, oldest first.
func (q *Queries) FindOrphans(
	ctx context.Context,
	listID int64,
	messageID string,
	excludeID int64,
) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, q.db, &ids, `
		SELECT id FROM emails
		WHERE mailinglist_id = ? AND in_reply_to = ? AND parent_id IS NULL AND id != ?
		ORDER BY date, id`,
		listID, messageID, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying orphans of %s: %w", messageID, err)
	}
	return ids, nil
}

// DeleteEmail removes an email with its attachments and votes. Children
// must have been re-pointed beforehand.
func (q *Queries) DeleteEmail(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, "DELETE FROM emails WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting email %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting email %d: %w", id, ErrNotFound)
	}
	return nil
}

// AttachmentExists reports whether an email already has an attachment
// with the given counter.
func (q *Queries) AttachmentExists(ctx context.Context, emailID int64, counter int) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n,
		"SELECT COUNT(*) FROM attachments WHERE email_id = ? AND counter = ?", emailID, counter,
	)
	if err != nil {
		return false, fmt.Errorf("checking attachment %d of email %d: %w", counter, emailID, err)
	}
	return n > 0, nil
}

// InsertAttachment inserts a and sets its ID.
func (q *Queries) InsertAttachment(ctx context.Context, a *model.Attachment) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO attachments (email_id, counter, name, content_type, encoding, size, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.EmailID, a.Counter, a.Name, a.ContentType, a.Encoding, a.Size, a.Content,
	)
	if err != nil {
		return fmt.Errorf("inserting attachment %d of email %d: %w", a.Counter, a.EmailID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading attachment id: %w", err)
	}
	a.ID = id
	return nil
}

// GetAttachments returns the attachments of an email by counter.
func (q *Queries) GetAttachments(ctx context.Context, emailID int64) ([]model.Attachment, error) {
	var atts []model.Attachment
	err := sqlx.SelectContext(ctx, q.db, &atts,
		"SELECT * FROM attachments WHERE email_id = ? ORDER BY counter", emailID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attachments of email %d: %w", emailID, err)
	}
	return atts, nil
}

// GetEmailIDs returns the ids of every email of a list, oldest first.
func (q *Queries) GetEmailIDs(ctx context.Context, listID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, q.db, &ids,
		"SELECT id FROM emails WHERE mailinglist_id = ? ORDER BY date, id", listID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying emails of list %d: %w", listID, err)
	}
	return ids, nil
}
