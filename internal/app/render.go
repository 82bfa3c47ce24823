package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nhle/listarchive/internal/index"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/internal/theme"
)

// RenderThread writes a thread as an indented tree of its emails.
func (a *App) RenderThread(ctx context.Context, w io.Writer, threadID int64) error {
	summary, err := a.Archive.ThreadSummary(ctx, threadID)
	if err != nil {
		return err
	}
	emails, err := a.Archive.ThreadEmails(ctx, threadID)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, theme.HeaderStyle.Render(summary.Subject))
	fmt.Fprintln(w, theme.DimmedStyle.Render(fmt.Sprintf(
		"%s emails, %s participants, active %s",
		humanize.Comma(int64(summary.EmailsCount)),
		humanize.Comma(int64(summary.ParticipantsCount)),
		humanize.Time(summary.Thread.DateActive),
	)), votes(summary.Votes))

	for _, e := range emails {
		fmt.Fprintln(w, a.emailLine(ctx, e))
	}
	return nil
}

func (a *App) emailLine(ctx context.Context, e model.Email) string {
	var b strings.Builder
	if e.ThreadDepth > 0 {
		b.WriteString(theme.TreeStyle.Render(strings.Repeat("│ ", e.ThreadDepth-1) + "└ "))
	}
	b.WriteString(theme.SenderStyle.Render(a.senderLabel(ctx, e)))
	b.WriteString(" ")
	b.WriteString(theme.DimmedStyle.Render(e.LocalDate().Format(time.RFC1123Z)))
	b.WriteString(" ")
	b.WriteString(theme.DimmedStyle.Render(e.MessageIDHash))
	return b.String()
}

func (a *App) senderLabel(ctx context.Context, e model.Email) string {
	if e.SenderName != "" {
		return e.SenderName
	}
	sender, err := a.Store.GetSender(ctx, e.SenderID)
	if err != nil {
		return fmt.Sprintf("sender %d", e.SenderID)
	}
	return sender.Address
}

func votes(v model.VoteSummary) string {
	if v.Likes == 0 && v.Dislikes == 0 {
		return ""
	}
	return theme.VoteStyle(v.Status).Render(fmt.Sprintf("+%d/-%d", v.Likes, v.Dislikes))
}

// RenderThreadList writes one line per thread.
func (a *App) RenderThreadList(ctx context.Context, w io.Writer, title string, ids []int64) error {
	fmt.Fprintln(w, theme.HeaderStyle.Render(title))
	if len(ids) == 0 {
		fmt.Fprintln(w, theme.HelpStyle.Render("no threads"))
		return nil
	}
	for _, id := range ids {
		s, err := a.Archive.ThreadSummary(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%6d  %s %s %s\n",
			id,
			theme.SubjectStyle.Render(s.Subject),
			theme.DimmedStyle.Render(fmt.Sprintf("(%d, %s)", s.EmailsCount, humanize.Time(s.Thread.DateActive))),
			votes(s.Votes),
		)
	}
	return nil
}

// RenderLists writes the archived lists with their policy.
func RenderLists(w io.Writer, lists []model.MailingList) {
	for _, l := range lists {
		name := l.Name
		if l.DisplayName != "" {
			name = fmt.Sprintf("%s (%s)", l.Name, l.DisplayName)
		}
		fmt.Fprintf(w, "%s %s %s\n",
			theme.PolicyStyle(l.ArchivePolicy).Render(l.ArchivePolicy.String()),
			theme.SubjectStyle.Render(name),
			theme.DimmedStyle.Render("created "+humanize.Time(l.CreatedAt)),
		)
	}
}

// RenderPosters writes the most active posters of a list.
func RenderPosters(w io.Writer, posters []store.PosterCount) {
	for _, p := range posters {
		label := p.Address
		if p.Name != "" {
			label = fmt.Sprintf("%s <%s>", p.Name, p.Address)
		}
		fmt.Fprintf(w, "%6s  %s\n", humanize.Comma(int64(p.Count)), theme.SenderStyle.Render(label))
	}
}

// RenderSearch writes full-text search hits.
func RenderSearch(w io.Writer, docs []index.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, theme.HelpStyle.Render("no match"))
		return
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s %s %s\n",
			theme.DimmedStyle.Render(d.Date.Format("2006-01-02")),
			theme.SubjectStyle.Render(d.Subject),
			theme.SenderStyle.Render(d.Sender),
		)
	}
}
