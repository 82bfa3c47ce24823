package mboximport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/archive"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/tasks"
	"github.com/nhle/listarchive/tests/testutil"
)

func rawMessage(id, inReplyTo, date string) string {
	var b strings.Builder
	if id != "" {
		b.WriteString("Message-ID: <" + id + ">\r\n")
	}
	if inReplyTo != "" {
		b.WriteString("In-Reply-To: <" + inReplyTo + ">\r\n")
	}
	b.WriteString("From: Sender <sender@example.com>\r\n")
	b.WriteString("Subject: Hello\r\n")
	b.WriteString("Date: " + date + "\r\n")
	b.WriteString("\r\nbody of " + id + "\r\n")
	return b.String()
}

func buildMbox(t *testing.T, messages ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := mbox.NewWriter(&buf)
	for _, m := range messages {
		mw, err := w.CreateMessage("sender@example.com", time.Date(2012, 11, 2, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		_, err = mw.Write([]byte(m))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	q := tasks.NewQueue(s, model.TasksConfig{Sync: true}, tasks.NewMetrics(prometheus.NewRegistry()))
	a := archive.New(archive.Options{Store: s, Tasks: q})

	data := buildMbox(t,
		rawMessage("reply@example.com", "root@example.com", "Fri, 02 Nov 2012 17:00:00 +0100"),
		rawMessage("root@example.com", "", "Fri, 02 Nov 2012 16:07:54 +0100"),
		rawMessage("root@example.com", "", "Fri, 02 Nov 2012 16:07:54 +0100"),
		rawMessage("", "", "Fri, 02 Nov 2012 16:07:54 +0100"),
		rawMessage("old@example.com", "", "Mon, 01 Jan 2001 00:00:00 +0000"),
	)

	since := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	report, err := New(a).Import(ctx, data, Options{ListName: "list@example.com", Since: &since})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Read)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, report.Threads)
	assert.Contains(t, report.String(), "imported 2 of 5 messages")

	list, err := a.List(ctx, "list@example.com")
	require.NoError(t, err)
	ids, err := s.GetThreadIDs(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	emails, err := a.ThreadEmails(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "root@example.com", emails[0].MessageID)
	assert.Equal(t, "reply@example.com", emails[1].MessageID)
	assert.Equal(t, 1, emails[1].ThreadDepth)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errBroken }

var errBroken = errors.New("connection reset")

func TestImportThreadsMessagesReadBeforeFailure(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	q := tasks.NewQueue(s, model.TasksConfig{Sync: true}, tasks.NewMetrics(prometheus.NewRegistry()))
	a := archive.New(archive.Options{Store: s, Tasks: q})

	// The third message is cut off by the read error.
	data := buildMbox(t,
		rawMessage("reply@example.com", "root@example.com", "Fri, 02 Nov 2012 17:00:00 +0100"),
		rawMessage("root@example.com", "", "Fri, 02 Nov 2012 16:07:54 +0100"),
		rawMessage("cut@example.com", "", "Fri, 02 Nov 2012 18:00:00 +0100"),
	)

	report, err := New(a).Import(ctx, io.MultiReader(data, brokenReader{}), Options{ListName: "list@example.com"})
	require.ErrorIs(t, err, errBroken)
	assert.Equal(t, 2, report.Read)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Threads)

	list, err := a.List(ctx, "list@example.com")
	require.NoError(t, err)
	ids, err := s.GetThreadIDs(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	emails, err := a.ThreadEmails(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, emails, 2)
	for i, e := range emails {
		require.NotNil(t, e.ThreadOrder, "email %s has no position", e.MessageID)
		assert.Equal(t, i, *e.ThreadOrder)
	}
	assert.Equal(t, "root@example.com", emails[0].MessageID)
	require.NotNil(t, emails[1].ParentID)
	assert.Equal(t, emails[0].ID, *emails[1].ParentID)
}
