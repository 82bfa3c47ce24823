package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
)

const (
	topPostersLimit     = 5
	topThreadsLimit     = 20
	popularThreadsLimit = 20
)

// Stats exposes the cached aggregates of lists, threads and emails.
type Stats struct {
	backend    Backend
	store      store.Querier
	recentDays int

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// NewStats creates the aggregate cache over s. recentDays sizes the window
// of "recent" threads and posters.
func NewStats(b Backend, s store.Querier, recentDays int) *Stats {
	if recentDays <= 0 {
		recentDays = 32
	}
	return &Stats{backend: b, store: s, recentDays: recentDays, Now: time.Now}
}

// RecentDates returns the [begin, end) window of recent activity. The end
// is one day ahead so that emails dated in the near future still count.
func (s *Stats) RecentDates() (time.Time, time.Time) {
	end := s.Now().UTC().Add(24 * time.Hour)
	begin := end.AddDate(0, 0, -s.recentDays)
	return begin, end
}

// InRecentWindow reports whether t falls in the recent window.
func (s *Stats) InRecentWindow(t time.Time) bool {
	begin, end := s.RecentDates()
	return !t.Before(begin) && t.Before(end)
}

func listKey(listID int64, name string) string {
	return Key("MailingList", listID, name)
}

func threadKey(threadID int64, name string) string {
	return Key("Thread", threadID, name)
}

func emailKey(emailID int64, name string) string {
	return Key("Email", emailID, name)
}

// === Mailing lists ===

// RecentThreads caches the ids of the threads active in the recent window,
// most recently active first.
func (s *Stats) RecentThreads(listID int64) *Value[[]int64] {
	return newValue(s.backend, listKey(listID, "recent_threads"), func(ctx context.Context) ([]int64, error) {
		begin, end := s.RecentDates()
		ids, err := s.store.ThreadIDsBetween(ctx, listID, begin, end)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []int64{}
		}
		// The count is derived from the same query.
		if err := s.RecentThreadsCount(listID).Set(len(ids)); err != nil {
			return nil, err
		}
		return ids, nil
	})
}

// RecentThreadsCount caches the number of recent threads.
func (s *Stats) RecentThreadsCount(listID int64) *Value[int] {
	return newValue(s.backend, listKey(listID, "recent_threads_count"), func(ctx context.Context) (int, error) {
		begin, end := s.RecentDates()
		ids, err := s.store.ThreadIDsBetween(ctx, listID, begin, end)
		return len(ids), err
	})
}

// AddRecentThread puts a thread at the front of the recent threads
// without querying them all again. Threads that age out are dropped by
// the periodic full rebuild.
func (s *Stats) AddRecentThread(ctx context.Context, listID, threadID int64) error {
	recent := s.RecentThreads(listID)
	ids, ok, err := recent.Cached()
	if err != nil || !ok {
		// Nothing to patch, the rebuild includes the thread.
		_, err = recent.Rebuild(ctx)
		return err
	}

	updated := make([]int64, 0, len(ids)+1)
	updated = append(updated, threadID)
	for _, id := range ids {
		if id != threadID {
			updated = append(updated, id)
		}
	}
	if err := recent.Set(updated); err != nil {
		return err
	}
	return s.RecentThreadsCount(listID).Set(len(updated))
}

// RecentParticipantsCount caches the number of distinct recent senders.
func (s *Stats) RecentParticipantsCount(listID int64) *Value[int] {
	return newValue(s.backend, listKey(listID, "recent_participants_count"), func(ctx context.Context) (int, error) {
		begin, end := s.RecentDates()
		return s.store.CountParticipantsBetween(ctx, listID, begin, end)
	})
}

// ParticipantsCountForMonth caches the number of distinct senders in a
// calendar month.
func (s *Stats) ParticipantsCountForMonth(listID int64, year int, month time.Month) *Value[int] {
	key := listKey(listID, fmt.Sprintf("p_count_for:%d:%d", year, int(month)))
	return newValue(s.backend, key, func(ctx context.Context) (int, error) {
		begin := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		end := begin.AddDate(0, 1, 0)
		return s.store.CountParticipantsBetween(ctx, listID, begin, end)
	})
}

// TopPosters caches the five most active recent senders. Ties are broken
// by address, then by display name.
func (s *Stats) TopPosters(listID int64) *Value[[]store.PosterCount] {
	return newValue(s.backend, listKey(listID, "top_posters"), func(ctx context.Context) ([]store.PosterCount, error) {
		begin, end := s.RecentDates()
		posters, err := s.store.CountPostersBetween(ctx, listID, begin, end)
		if err != nil {
			return nil, err
		}
		sort.Slice(posters, func(i, j int) bool {
			a, b := posters[i], posters[j]
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			if a.Address != b.Address {
				return a.Address < b.Address
			}
			return a.Name < b.Name
		})
		if len(posters) > topPostersLimit {
			posters = posters[:topPostersLimit]
		}
		if posters == nil {
			posters = []store.PosterCount{}
		}
		return posters, nil
	})
}

// rankThreads orders counts by count desc, date_active desc, id asc and
// keeps at most limit ids.
func rankThreads(counts []store.ThreadCount, limit int) []int64 {
	sort.Slice(counts, func(i, j int) bool {
		a, b := counts[i], counts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.DateActive.Equal(b.DateActive) {
			return a.DateActive.After(b.DateActive)
		}
		return a.ThreadID < b.ThreadID
	})
	ids := make([]int64, 0, min(len(counts), limit))
	for _, c := range counts {
		if len(ids) == limit {
			break
		}
		ids = append(ids, c.ThreadID)
	}
	return ids
}

// TopThreads caches the recent threads with the most emails.
func (s *Stats) TopThreads(listID int64) *Value[[]int64] {
	return newValue(s.backend, listKey(listID, "top_threads"), func(ctx context.Context) ([]int64, error) {
		begin, end := s.RecentDates()
		recent, err := s.store.ThreadIDsBetween(ctx, listID, begin, end)
		if err != nil {
			return nil, err
		}
		counts, err := s.store.CountEmailsPerThread(ctx, recent)
		if err != nil {
			return nil, err
		}
		return rankThreads(counts, topThreadsLimit), nil
	})
}

// PopularThreads caches the recent threads with the best vote balance.
// Threads without a positive balance are left out. The vote total of each
// ranked thread is cached along the way.
func (s *Stats) PopularThreads(listID int64) *Value[[]int64] {
	return newValue(s.backend, listKey(listID, "popular_threads"), func(ctx context.Context) ([]int64, error) {
		begin, end := s.RecentDates()
		recent, err := s.store.ThreadIDsBetween(ctx, listID, begin, end)
		if err != nil {
			return nil, err
		}
		sums, err := s.store.SumVotesPerThread(ctx, recent)
		if err != nil {
			return nil, err
		}
		positive := sums[:0]
		for _, c := range sums {
			if c.Count > 0 {
				positive = append(positive, c)
			}
		}
		ids := rankThreads(positive, popularThreadsLimit)
		for _, c := range positive {
			if err := s.ThreadVotesTotal(c.ThreadID).Set(c.Count); err != nil {
				return nil, err
			}
		}
		return ids, nil
	})
}

// FirstDate caches the date of the oldest email of a list.
func (s *Stats) FirstDate(listID int64) *Value[*time.Time] {
	return newValue(s.backend, listKey(listID, "first_date"), func(ctx context.Context) (*time.Time, error) {
		return s.store.FirstEmailDate(ctx, listID)
	})
}

// RebuildRecent rebuilds every value that depends on the recent window.
func (s *Stats) RebuildRecent(ctx context.Context, listID int64) error {
	var errs []error
	if _, err := s.RecentThreads(listID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.RecentParticipantsCount(listID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.TopThreads(listID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.TopPosters(listID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.PopularThreads(listID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WarmUpList fills in missing list values.
func (s *Stats) WarmUpList(ctx context.Context, listID int64) error {
	return errors.Join(
		s.RecentThreads(listID).WarmUp(ctx),
		s.RecentParticipantsCount(listID).WarmUp(ctx),
		s.TopThreads(listID).WarmUp(ctx),
		s.TopPosters(listID).WarmUp(ctx),
		s.PopularThreads(listID).WarmUp(ctx),
		s.FirstDate(listID).WarmUp(ctx),
	)
}

// WarmUpMonths fills in the monthly values of the months before the
// current one, with the values of the threads active in them.
func (s *Stats) WarmUpMonths(ctx context.Context, listID int64, months int) error {
	now := s.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var errs []error
	for i := 0; i < months; i++ {
		end := start
		start = start.AddDate(0, -1, 0)
		if err := s.ParticipantsCountForMonth(listID, start.Year(), start.Month()).WarmUp(ctx); err != nil {
			errs = append(errs, err)
		}
		threads, err := s.store.ThreadIDsBetween(ctx, listID, start, end)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, id := range threads {
			if err := s.WarmUpThread(ctx, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// === Threads ===

// ThreadParticipantsCount caches the number of distinct senders of a
// thread.
func (s *Stats) ThreadParticipantsCount(threadID int64) *Value[int] {
	return newValue(s.backend, threadKey(threadID, "participants_count"), func(ctx context.Context) (int, error) {
		return s.store.CountThreadParticipants(ctx, threadID)
	})
}

// ThreadEmailsCount caches the number of emails of a thread.
func (s *Stats) ThreadEmailsCount(threadID int64) *Value[int] {
	return newValue(s.backend, threadKey(threadID, "emails_count"), func(ctx context.Context) (int, error) {
		return s.store.CountThreadEmails(ctx, threadID)
	})
}

// ThreadSubject caches the subject of the starting email of a thread with
// the list prefix removed.
func (s *Stats) ThreadSubject(threadID int64) *Value[string] {
	return newValue(s.backend, threadKey(threadID, "subject"), func(ctx context.Context) (string, error) {
		thread, err := s.store.GetThread(ctx, threadID)
		if err != nil {
			return "", err
		}
		var starting *model.Email
		if thread.StartingEmailID != nil {
			starting, err = s.store.GetEmail(ctx, *thread.StartingEmailID)
			if err != nil {
				return "", err
			}
		} else {
			emails, err := s.store.GetThreadEmails(ctx, threadID)
			if err != nil {
				return "", err
			}
			if len(emails) == 0 {
				return "", fmt.Errorf("thread %d has no email: %w", threadID, store.ErrNotFound)
			}
			starting = &emails[0]
		}
		list, err := s.store.GetMailingListByID(ctx, thread.MailingListID)
		if err != nil {
			return "", err
		}
		return list.StrippedSubject(starting.Subject), nil
	})
}

// ThreadVotes caches the likes and dislikes over all emails of a thread.
func (s *Stats) ThreadVotes(threadID int64) *Value[model.VoteSummary] {
	return newValue(s.backend, threadKey(threadID, "votes"), func(ctx context.Context) (model.VoteSummary, error) {
		likes, dislikes, err := s.store.CountThreadVotes(ctx, threadID)
		if err != nil {
			return model.VoteSummary{}, err
		}
		return model.NewVoteSummary(likes, dislikes), nil
	})
}

// ThreadVotesTotal caches likes minus dislikes of a thread.
func (s *Stats) ThreadVotesTotal(threadID int64) *Value[int] {
	return newValue(s.backend, threadKey(threadID, "votes_total"), func(ctx context.Context) (int, error) {
		likes, dislikes, err := s.store.CountThreadVotes(ctx, threadID)
		return likes - dislikes, err
	})
}

// RebuildThread refreshes the values that change when an email is added
// to or removed from a thread.
func (s *Stats) RebuildThread(ctx context.Context, threadID int64) error {
	var errs []error
	if _, err := s.ThreadParticipantsCount(threadID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.ThreadEmailsCount(threadID).Rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RebuildThreadVotes refreshes the vote values of a thread.
func (s *Stats) RebuildThreadVotes(ctx context.Context, threadID int64) error {
	_, err1 := s.ThreadVotes(threadID).Rebuild(ctx)
	_, err2 := s.ThreadVotesTotal(threadID).Rebuild(ctx)
	return errors.Join(err1, err2)
}

// WarmUpThread fills in missing thread values.
func (s *Stats) WarmUpThread(ctx context.Context, threadID int64) error {
	return errors.Join(
		s.ThreadParticipantsCount(threadID).WarmUp(ctx),
		s.ThreadEmailsCount(threadID).WarmUp(ctx),
		s.ThreadSubject(threadID).WarmUp(ctx),
		s.ThreadVotes(threadID).WarmUp(ctx),
		s.ThreadVotesTotal(threadID).WarmUp(ctx),
	)
}

// === Emails ===

// EmailVotes caches the likes and dislikes of an email.
func (s *Stats) EmailVotes(emailID int64) *Value[model.VoteSummary] {
	return newValue(s.backend, emailKey(emailID, "votes"), func(ctx context.Context) (model.VoteSummary, error) {
		likes, dislikes, err := s.store.CountEmailVotes(ctx, emailID)
		if err != nil {
			return model.VoteSummary{}, err
		}
		return model.NewVoteSummary(likes, dislikes), nil
	})
}
