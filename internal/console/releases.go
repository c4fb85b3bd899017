package console

import (
	"net/http"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/session"
)

// listReleases fetches releases once per browser session and serves the
// cached list afterwards.
func (c *Console) listReleases(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	releases, cached := c.cachedReleases()
	if !sess.ReleasesFetched() || !cached {
		fetched, err := c.svc.Releases.List(r.Context())
		if err != nil {
			c.fail(r, "Loading releases", err)
		} else {
			c.storeReleases(fetched)
			sess.MarkReleasesFetched()
			releases = fetched
		}
	}

	rows := make([]map[string]any, 0, len(releases))
	for _, rel := range releases {
		row := map[string]any{
			"version": rel.Version,
			"title":   rel.Title,
			"notes":   rel.Notes,
			"url":     rel.URL,
		}
		if !rel.PublishedAt.IsZero() {
			row["published"] = rel.PublishedAt.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	c.page(w, r, http.StatusOK, "releases", map[string]any{
		"section":  "releases",
		"releases": rows,
	})
}

// refreshReleases forgets that this session fetched releases.
func (c *Console) refreshReleases(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).ClearReleasesFetched()
	redirect(w, r, "/releases")
}

func (c *Console) cachedReleases() ([]domain.Release, bool) {
	c.releasesMu.RLock()
	defer c.releasesMu.RUnlock()
	if c.releases == nil {
		return nil, false
	}
	return append([]domain.Release(nil), c.releases...), true
}

func (c *Console) storeReleases(releases []domain.Release) {
	c.releasesMu.Lock()
	defer c.releasesMu.Unlock()
	c.releases = append([]domain.Release{}, releases...)
}
