package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/tests/testutil"
)

var day = time.Date(2012, 11, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t    *testing.T
	ctx  context.Context
	s    *store.SQLiteStore
	list *model.MailingList
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	ml, created, err := s.GetOrCreateMailingList(ctx, "list@example.com")
	require.NoError(t, err)
	require.True(t, created)
	return &fixture{t: t, ctx: ctx, s: s, list: ml}
}

func (f *fixture) thread(hash string) *model.Thread {
	th := &model.Thread{MailingListID: f.list.ID, ThreadID: hash, DateActive: day}
	require.NoError(f.t, f.s.CreateThread(f.ctx, th))
	return th
}

func (f *fixture) email(msgID, sender string, th *model.Thread, parent *int64, date time.Time) *model.Email {
	snd, err := f.s.GetOrCreateSender(f.ctx, sender)
	require.NoError(f.t, err)
	e := &model.Email{
		MailingListID: f.list.ID,
		MessageID:     msgID,
		MessageIDHash: msgID + "-hash",
		SenderID:      snd.ID,
		SenderName:    sender,
		Subject:       "subject",
		ParentID:      parent,
		ThreadID:      th.ID,
		Date:          date,
		ArchivedDate:  date,
	}
	require.NoError(f.t, f.s.InsertEmail(f.ctx, e))
	return e
}

func TestGetOrCreateMailingList(t *testing.T) {
	f := newFixture(t)

	ml, created, err := f.s.GetOrCreateMailingList(f.ctx, "list@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.list.ID, ml.ID)
	assert.Equal(t, "list.example.com", ml.ListID)
	assert.Equal(t, model.ArchivePolicyPublic, ml.ArchivePolicy)

	_, err = f.s.GetMailingList(f.ctx, "other@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSingleRootPerThread(t *testing.T) {
	f := newFixture(t)
	th := f.thread("T1")
	root := f.email("root@example.com", "a@example.com", th, nil, day)

	snd, err := f.s.GetOrCreateSender(f.ctx, "b@example.com")
	require.NoError(t, err)
	second := &model.Email{
		MailingListID: f.list.ID,
		MessageID:     "second@example.com",
		MessageIDHash: "second",
		SenderID:      snd.ID,
		ThreadID:      th.ID,
		Date:          day,
		ArchivedDate:  day,
	}
	err = f.s.InsertEmail(f.ctx, second)
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))

	second.ParentID = &root.ID
	require.NoError(t, f.s.InsertEmail(f.ctx, second))
}

func TestDuplicateMessageIDIsUniqueViolation(t *testing.T) {
	f := newFixture(t)
	th := f.thread("T1")
	root := f.email("root@example.com", "a@example.com", th, nil, day)

	dup := *root
	dup.ParentID = &root.ID
	err := f.s.InsertEmail(f.ctx, &dup)
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))
	assert.False(t, store.IsUniqueViolation(errors.New("boom")))
}

func TestInTxRollsBack(t *testing.T) {
	f := newFixture(t)
	sentinel := errors.New("abort")

	err := f.s.InTx(f.ctx, func(q store.Querier) error {
		if _, _, err := q.GetOrCreateMailingList(f.ctx, "tx@example.com"); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = f.s.GetMailingList(f.ctx, "tx@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestThreadEmailsOrder(t *testing.T) {
	f := newFixture(t)
	th := f.thread("T1")
	root := f.email("1@example.com", "a@example.com", th, nil, day)
	late := f.email("2@example.com", "a@example.com", th, &root.ID, day.Add(2*time.Hour))
	early := f.email("3@example.com", "a@example.com", th, &root.ID, day.Add(time.Hour))

	// Unpositioned emails sort by date.
	emails, err := f.s.GetThreadEmails(f.ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, emails, 3)
	assert.Equal(t, []int64{root.ID, early.ID, late.ID}, []int64{emails[0].ID, emails[1].ID, emails[2].ID})

	require.NoError(t, f.s.SetEmailPositions(f.ctx, []store.Position{
		{EmailID: root.ID, Order: 0, Depth: 0},
		{EmailID: late.ID, Order: 1, Depth: 1},
		{EmailID: early.ID, Order: 2, Depth: 1},
	}))
	emails, err = f.s.GetThreadEmails(f.ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{root.ID, late.ID, early.ID}, []int64{emails[0].ID, emails[1].ID, emails[2].ID})
	require.NotNil(t, emails[1].ThreadOrder)
	assert.Equal(t, 1, *emails[1].ThreadOrder)
	assert.Equal(t, 1, emails[1].ThreadDepth)

	latest, err := f.s.LatestEmailDate(f.ctx, th.ID)
	require.NoError(t, err)
	assert.True(t, latest.Equal(late.Date))
}

func TestFindOrphans(t *testing.T) {
	f := newFixture(t)
	parentID := "parent@example.com"

	t1 := f.thread("T1")
	t2 := f.thread("T2")
	o1 := f.email("o1@example.com", "a@example.com", t1, nil, day.Add(time.Hour))
	o2 := f.email("o2@example.com", "a@example.com", t2, nil, day)
	for _, e := range []*model.Email{o1, o2} {
		_, err := f.s.DB().ExecContext(f.ctx, "UPDATE emails SET in_reply_to = ? WHERE id = ?", parentID, e.ID)
		require.NoError(t, err)
	}

	ids, err := f.s.FindOrphans(f.ctx, f.list.ID, parentID, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{o1.ID}, ids)

	ids, err = f.s.FindOrphans(f.ctx, f.list.ID, parentID, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{o2.ID, o1.ID}, ids)
}

func TestCountPostersBetween(t *testing.T) {
	f := newFixture(t)
	th := f.thread("T1")
	root := f.email("1@example.com", "a@example.com", th, nil, day)
	f.email("2@example.com", "a@example.com", th, &root.ID, day.Add(time.Hour))
	f.email("3@example.com", "b@example.com", th, &root.ID, day.Add(2*time.Hour))
	f.email("4@example.com", "b@example.com", th, &root.ID, day.Add(48*time.Hour))

	posters, err := f.s.CountPostersBetween(f.ctx, f.list.ID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []store.PosterCount{
		{Address: "a@example.com", Name: "a@example.com", Count: 2},
		{Address: "b@example.com", Name: "b@example.com", Count: 1},
	}, posters)

	n, err := f.s.CountParticipantsBetween(f.ctx, f.list.ID, day, day.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.s.CountThreadParticipants(f.ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFirstEmailDate(t *testing.T) {
	f := newFixture(t)

	first, err := f.s.FirstEmailDate(f.ctx, f.list.ID)
	require.NoError(t, err)
	assert.Nil(t, first)

	th := f.thread("T1")
	root := f.email("1@example.com", "a@example.com", th, nil, day.Add(time.Hour))
	f.email("2@example.com", "a@example.com", th, &root.ID, day)

	first, err = f.s.FirstEmailDate(f.ctx, f.list.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.Equal(day))
}

func TestVotes(t *testing.T) {
	f := newFixture(t)
	th := f.thread("T1")
	root := f.email("1@example.com", "a@example.com", th, nil, day)
	reply := f.email("2@example.com", "a@example.com", th, &root.ID, day)

	require.NoError(t, f.s.UpsertVote(f.ctx, root.ID, "alice", model.VoteLike))
	require.NoError(t, f.s.UpsertVote(f.ctx, root.ID, "bob", model.VoteLike))
	require.NoError(t, f.s.UpsertVote(f.ctx, reply.ID, "alice", model.VoteDislike))
	require.NoError(t, f.s.UpsertVote(f.ctx, root.ID, "bob", model.VoteDislike))

	likes, dislikes, err := f.s.CountEmailVotes(f.ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
	assert.Equal(t, 1, dislikes)

	likes, dislikes, err = f.s.CountThreadVotes(f.ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
	assert.Equal(t, 2, dislikes)

	sums, err := f.s.SumVotesPerThread(f.ctx, []int64{th.ID})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, -1, sums[0].Count)

	require.NoError(t, f.s.DeleteVote(f.ctx, root.ID, "bob"))
	_, err = f.s.GetVote(f.ctx, root.ID, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLeases(t *testing.T) {
	f := newFixture(t)

	ok, err := f.s.AcquireLease(f.ctx, "recompute:1", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.s.AcquireLease(f.ctx, "recompute:1", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// An expired lease can be taken over.
	ok, err = f.s.AcquireLease(f.ctx, "recompute:2", "worker-a", -time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.s.AcquireLease(f.ctx, "recompute:2", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Releasing with the wrong owner keeps the lease.
	require.NoError(t, f.s.ReleaseLease(f.ctx, "recompute:1", "worker-b"))
	ok, err = f.s.AcquireLease(f.ctx, "recompute:1", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.s.ReleaseLease(f.ctx, "recompute:1", "worker-a"))
	ok, err = f.s.AcquireLease(f.ctx, "recompute:1", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndexQueue(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.s.EnqueueIndex(f.ctx, []store.IndexEntry{
		{EmailID: 1, ListName: "list@example.com", Action: store.IndexUpdate, QueuedAt: day},
		{EmailID: 2, ListName: "list@example.com", Action: store.IndexUpdate, QueuedAt: day.Add(time.Second)},
	}))
	require.NoError(t, f.s.EnqueueIndex(f.ctx, []store.IndexEntry{
		{EmailID: 1, ListName: "list@example.com", Action: store.IndexRemove, QueuedAt: day.Add(time.Minute)},
	}))

	pending, err := f.s.GetPendingIndex(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].EmailID)
	assert.Equal(t, int64(1), pending[1].EmailID)
	assert.Equal(t, store.IndexRemove, pending[1].Action)

	require.NoError(t, f.s.ClearIndex(f.ctx, []int64{2}))
	pending, err = f.s.GetPendingIndex(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].EmailID)
}
