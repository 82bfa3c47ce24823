package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/listarchive/internal/model"
)

// GetOrCreateMailingList returns the list named name, creating it with the
// default policy when missing. The boolean reports whether it was created.
func (q *Queries) GetOrCreateMailingList(
	ctx context.Context,
	name string,
) (*model.MailingList, bool, error) {
	ml, err := q.GetMailingList(ctx, name)
	if err == nil {
		return ml, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO mailing_lists (name, list_id, archive_policy, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, model.DefaultListID(name), model.ArchivePolicyPublic, time.Now().UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating mailing list %s: %w", name, err)
	}
	created, _ := res.RowsAffected()

	ml, err = q.GetMailingList(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return ml, created > 0, nil
}

// GetMailingList retrieves a list by its posting address.
func (q *Queries) GetMailingList(
	ctx context.Context,
	name string,
) (*model.MailingList, error) {
	var ml model.MailingList
	err := sqlx.GetContext(ctx, q.db, &ml, "SELECT * FROM mailing_lists WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("getting mailing list %s: %w", name, notFound(err))
	}
	return &ml, nil
}

// GetMailingListByID retrieves a list by its row id.
func (q *Queries) GetMailingListByID(
	ctx context.Context,
	id int64,
) (*model.MailingList, error) {
	var ml model.MailingList
	err := sqlx.GetContext(ctx, q.db, &ml, "SELECT * FROM mailing_lists WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting mailing list %d: %w", id, notFound(err))
	}
	return &ml, nil
}

// GetMailingLists returns every list ordered by name.
func (q *Queries) GetMailingLists(ctx context.Context) ([]model.MailingList, error) {
	var lists []model.MailingList
	if err := sqlx.SelectContext(ctx, q.db, &lists, "SELECT * FROM mailing_lists ORDER BY name"); err != nil {
		return nil, fmt.Errorf("querying mailing lists: %w", err)
	}
	return lists, nil
}

// UpdateMailingListMetadata stores the properties published by the list
// directory.
func (q *Queries) UpdateMailingListMetadata(
	ctx context.Context,
	name string,
	meta model.ListMetadata,
) error {
	listID := meta.ListID
	if listID == "" {
		listID = model.DefaultListID(name)
	}
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := q.db.ExecContext(ctx, `
		UPDATE mailing_lists SET
			list_id = ?, display_name = ?, description = ?,
			subject_prefix = ?, archive_policy = ?, created_at = ?
		WHERE name = ?`,
		listID, meta.DisplayName, meta.Description,
		meta.SubjectPrefix, meta.ArchivePolicy, createdAt.UTC(),
		name,
	)
	if err != nil {
		return fmt.Errorf("updating mailing list %s: %w", name, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("updating mailing list %s: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteMailingList purges a list. Threads, emails, attachments and votes
// go with it.
func (q *Queries) DeleteMailingList(ctx context.Context, name string) error {
	result, err := q.db.ExecContext(ctx, "DELETE FROM mailing_lists WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting mailing list %s: %w", name, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting mailing list %s: %w", name, ErrNotFound)
	}
	return nil
}

// GetOrCreateSender returns the sender with the given address, creating
// it when missing.
func (q *Queries) GetOrCreateSender(
	ctx context.Context,
	address string,
) (*model.Sender, error) {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO senders (address) VALUES (?) ON CONFLICT(address) DO NOTHING",
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("creating sender %s: %w", address, err)
	}

	var s model.Sender
	err = sqlx.GetContext(ctx, q.db, &s, "SELECT * FROM senders WHERE address = ?", address)
	if err != nil {
		return nil, fmt.Errorf("getting sender %s: %w", address, notFound(err))
	}
	return &s, nil
}

// GetSender retrieves a sender by id.
func (q *Queries) GetSender(ctx context.Context, id int64) (*model.Sender, error) {
	var s model.Sender
	err := sqlx.GetContext(ctx, q.db, &s, "SELECT * FROM senders WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting sender %d: %w", id, notFound(err))
	}
	return &s, nil
}

// SetSenderMailmanID records the directory user id of a sender.
func (q *Queries) SetSenderMailmanID(ctx context.Context, id int64, mailmanID string) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE senders SET mailman_id = ? WHERE id = ?", mailmanID, id,
	)
	if err != nil {
		return fmt.Errorf("updating sender %d: %w", id, err)
	}
	return nil
}

// GetSenders returns senders ordered by id, starting after afterID. With
// unlinkedOnly set, senders already linked to a directory user are skipped.
func (q *Queries) GetSenders(
	ctx context.Context,
	afterID int64,
	limit int,
	unlinkedOnly bool,
) ([]model.Sender, error) {
	query := "SELECT * FROM senders WHERE id > ?"
	if unlinkedOnly {
		query += " AND mailman_id IS NULL"
	}
	query += " ORDER BY id LIMIT ?"

	var senders []model.Sender
	if err := sqlx.SelectContext(ctx, q.db, &senders, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("querying senders: %w", err)
	}
	return senders, nil
}
