package listdir

import (
	"context"
	"errors"

	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
)

const (
	listPageSize   = 10
	maxListPages   = 10000
	senderPageSize = 1000
)

// Syncer copies list properties and sender identities from the
// directory into the archive. The directory being unreachable is never
// an error for the caller: the failure is logged and the next trigger
// tries again.
type Syncer struct {
	dir    Directory
	store  store.Querier
	logger log.Logger
}

// NewSyncer creates a syncer reading from dir and writing to s.
func NewSyncer(dir Directory, s store.Querier) *Syncer {
	return &Syncer{dir: dir, store: s, logger: log.NewLogger("listdir")}
}

// SyncList refreshes the properties of one list.
func (s *Syncer) SyncList(ctx context.Context, name string) error {
	meta, err := s.dir.GetList(ctx, name)
	if err != nil {
		s.logFailure("list "+name, err)
		return nil
	}
	if err := s.store.UpdateMailingListMetadata(ctx, name, *meta); err != nil {
		return err
	}
	s.logger.Debugf("refreshed list %s", name)
	return nil
}

// SyncSender links a sender to its directory user.
func (s *Syncer) SyncSender(ctx context.Context, senderID int64) error {
	sender, err := s.store.GetSender(ctx, senderID)
	if err != nil {
		return err
	}
	_, err = s.linkSender(ctx, sender)
	return err
}

// linkSender reports whether the sender was linked. A directory failure
// is logged and reported as not linked.
func (s *Syncer) linkSender(ctx context.Context, sender *model.Sender) (bool, error) {
	userID, err := s.dir.GetUserID(ctx, sender.Address)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.logFailure("sender "+sender.Address, err)
		return false, nil
	}
	if userID == "" {
		return false, nil
	}
	if err := s.store.SetSenderMailmanID(ctx, sender.ID, userID); err != nil {
		return false, err
	}
	return true, nil
}

// ImportNewLists creates the archived lists the directory knows about
// and the archive does not. Lists that are never archived are skipped.
// It returns the names of the imported lists.
func (s *Syncer) ImportNewLists(ctx context.Context) ([]string, error) {
	var imported []string
	for page := 1; page <= maxListPages; page++ {
		p, err := s.dir.GetListPage(ctx, page, listPageSize)
		if err != nil {
			s.logFailure("list page", err)
			break
		}
		for _, l := range p.Entries {
			if _, err := s.store.GetMailingList(ctx, l.FQDNListname); err == nil {
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return imported, err
			}
			meta, err := s.dir.GetList(ctx, l.FQDNListname)
			if err != nil {
				s.logFailure("list "+l.FQDNListname, err)
				continue
			}
			if meta.ArchivePolicy == model.ArchivePolicyNever {
				continue
			}
			if _, _, err := s.store.GetOrCreateMailingList(ctx, l.FQDNListname); err != nil {
				return imported, err
			}
			if err := s.store.UpdateMailingListMetadata(ctx, l.FQDNListname, *meta); err != nil {
				return imported, err
			}
			s.logger.Infof("imported the new list %s from the directory", l.FQDNListname)
			imported = append(imported, l.FQDNListname)
		}
		if p.Start+len(p.Entries) >= p.TotalSize || len(p.Entries) == 0 {
			break
		}
	}
	return imported, nil
}

// SyncAll refreshes every archived list, then links senders to directory
// users. With overwrite set, senders already linked are looked up again.
// It returns the number of senders linked.
func (s *Syncer) SyncAll(ctx context.Context, overwrite bool) (int, error) {
	lists, err := s.store.GetMailingLists(ctx)
	if err != nil {
		return 0, err
	}
	for _, l := range lists {
		if err := s.SyncList(ctx, l.Name); err != nil {
			return 0, err
		}
	}

	linked := 0
	var after int64
	for {
		senders, err := s.store.GetSenders(ctx, after, senderPageSize, !overwrite)
		if err != nil {
			return linked, err
		}
		if len(senders) == 0 {
			break
		}
		for i := range senders {
			ok, err := s.linkSender(ctx, &senders[i])
			if err != nil {
				return linked, err
			}
			if ok {
				linked++
			}
		}
		after = senders[len(senders)-1].ID
		s.logger.Debugf("checked senders up to %d, %d linked", after, linked)
	}
	return linked, nil
}

func (s *Syncer) logFailure(what string, err error) {
	if IsAuthError(err) {
		s.logger.Errorf("refreshing %s: %v", what, err)
		return
	}
	s.logger.Warnf("refreshing %s: %v", what, err)
}
