package listdir

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nhle/listarchive/internal/model"
)

// Directory is the part of the REST API the archive uses.
type Directory interface {
	GetList(ctx context.Context, name string) (*model.ListMetadata, error)
	GetListPage(ctx context.Context, page, count int) (*ListPage, error)
	GetUserID(ctx context.Context, address string) (string, error)
}

// GetList returns the properties of the list posting at name.
func (c *Client) GetList(ctx context.Context, name string) (*model.ListMetadata, error) {
	path := "/lists/" + url.PathEscape(name)

	var l List
	if err := c.Get(ctx, path, &l); err != nil {
		return nil, fmt.Errorf("getting list %s: %w", name, err)
	}
	var cfg ListConfig
	if err := c.Get(ctx, path+"/config", &cfg); err != nil {
		return nil, fmt.Errorf("getting config of list %s: %w", name, err)
	}

	policy, err := model.ParseArchivePolicy(cfg.ArchivePolicy)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	meta := &model.ListMetadata{
		ListID:        l.ListID,
		DisplayName:   l.DisplayName,
		Description:   l.Description,
		SubjectPrefix: cfg.SubjectPrefix,
		ArchivePolicy: policy,
	}
	if t, ok := parseCreatedAt(cfg.CreatedAt); ok {
		meta.CreatedAt = t
	}
	return meta, nil
}

// GetListPage returns one page of the lists known to the directory.
// Pages start at 1.
func (c *Client) GetListPage(ctx context.Context, page, count int) (*ListPage, error) {
	var p ListPage
	path := fmt.Sprintf("/lists?count=%d&page=%d", count, page)
	if err := c.Get(ctx, path, &p); err != nil {
		return nil, fmt.Errorf("listing lists: %w", err)
	}
	return &p, nil
}

// GetUserID returns the id of the directory user owning address.
func (c *Client) GetUserID(ctx context.Context, address string) (string, error) {
	var u User
	if err := c.Get(ctx, "/users/"+url.PathEscape(address), &u); err != nil {
		return "", fmt.Errorf("getting user %s: %w", address, err)
	}
	return u.UserID, nil
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseCreatedAt reads the directory timestamps, which carry no zone
// and are UTC.
func parseCreatedAt(s string) (time.Time, bool) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
