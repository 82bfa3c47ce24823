package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/normalize"
)

const testList = "dev@example.com"

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := model.DefaultAppConfig()
	cfg.Store.Path = filepath.Join(dir, "archive.db")
	cfg.Cache.Backend = "bolt"
	cfg.Cache.BoltPath = filepath.Join(dir, "cache.db")
	cfg.Index.Path = filepath.Join(dir, "index.db")
	cfg.Tasks.Sync = true
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func ingest(t *testing.T, a *App, id, inReplyTo, subject string) {
	t.Helper()
	raw := "Message-ID: <" + id + ">\r\n"
	if inReplyTo != "" {
		raw += "In-Reply-To: <" + inReplyTo + ">\r\n"
	}
	raw += "From: Jane Doe <jane@example.com>\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Fri, 02 Nov 2012 16:07:54 +0100\r\n" +
		"\r\nLet us talk about the release schedule.\r\n"

	msg, err := normalize.ReadMessage(strings.NewReader(raw), nil)
	require.NoError(t, err)
	n, err := normalize.Normalize(msg)
	require.NoError(t, err)
	_, err = a.Archive.Ingest(context.Background(), testList, n)
	require.NoError(t, err)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "redis"

	_, err := New(cfg)
	assert.ErrorContains(t, err, `unknown cache backend "redis"`)
}

func TestNewRequiresDirectoryURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Directory.Enabled = true
	cfg.Directory.Password = "secret"

	_, err := New(cfg)
	assert.ErrorContains(t, err, "base_url")
}

func TestMaintenance(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	ingest(t, a, "root@example.com", "", "Release planning")
	ingest(t, a, "reply@example.com", "root@example.com", "Re: Release planning")

	n, err := a.RecomputeAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, a.WarmUp(ctx, []string{testList}, 2))
	require.NoError(t, a.RebuildRecent(ctx))

	_, err = a.RecomputeAll(ctx, []string{"missing@example.com"})
	assert.Error(t, err)

	sent, err := a.Reindex(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	docs, err := a.Search.Search(testList, "release schedule")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	assert.ErrorIs(t, a.SyncDirectory(ctx, false), ErrNoDirectory)
}

func TestRenderThread(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	ingest(t, a, "root@example.com", "", "Release planning")
	ingest(t, a, "reply@example.com", "root@example.com", "Re: Release planning")

	list, err := a.Archive.List(ctx, testList)
	require.NoError(t, err)
	ids, err := a.Store.GetThreadIDs(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	var buf bytes.Buffer
	require.NoError(t, a.RenderThread(ctx, &buf, ids[0]))
	out := buf.String()
	assert.Contains(t, out, "Release planning")
	assert.Contains(t, out, "2 emails, 1 participants")
	assert.Contains(t, out, "└ ")
	assert.Equal(t, 2, strings.Count(out, "Jane Doe"))

	buf.Reset()
	RenderLists(&buf, []model.MailingList{*list})
	assert.Contains(t, buf.String(), testList)
	assert.Contains(t, buf.String(), "public")
}

func TestJobs(t *testing.T) {
	a := newTestApp(t)

	var names []string
	for _, j := range a.Jobs() {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{JobRebuildRecent, JobUpdateIndex}, names)
}
