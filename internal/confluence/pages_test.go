package confluence

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePage(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(r *http.Request) (int, string) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/api/content", r.URL.Path)
		return http.StatusOK, `{
			"id": "123", "type": "page", "status": "current", "title": "Runbook",
			"space": {"id": 98310, "key": "OPS", "name": "Operations"},
			"version": {"number": 1, "when": "2025-03-14T09:00:00.000Z", "by": {"type": "known", "username": "ada", "displayName": "Ada"}},
			"ancestors": [{"id": "77", "type": "page", "title": "Parent"}],
			"_links": {"webui": "/display/OPS/Runbook", "self": "https://wiki.example.com/rest/api/content/123"}
		}`
	})

	res, err := svc.CreatePage(context.Background(), CreatePageParams{
		SpaceKey: "OPS",
		Title:    "Runbook",
		Content:  "<p>hello</p>",
		ParentID: "77",
	})
	require.NoError(t, err)

	sent := rec.body(0)
	assert.Equal(t, "page", sent["type"])
	assert.Equal(t, map[string]any{"key": "OPS"}, sent["space"])
	assert.Equal(t, []any{map[string]any{"id": "77"}}, sent["ancestors"])
	assert.Equal(t, map[string]any{"storage": map[string]any{"value": "<p>hello</p>", "representation": "storage"}}, sent["body"])

	page := res.Page
	assert.Equal(t, "123", page.ID)
	assert.Equal(t, SpaceRefView{ID: "98310", Key: "OPS", Name: "Operations"}, page.Space)
	assert.Equal(t, "ada", page.Version.By.AccountID)
	assert.Equal(t, []ContentRefView{{ID: "77", Type: "page", Title: "Parent"}}, page.Ancestors)
	assert.Equal(t, "/display/OPS/Runbook", page.Links.WebUI)
	assert.Empty(t, page.Children)
	assert.NotNil(t, page.Children)
}

func TestCreatePageKeepsParentWhenAncestorsOmitted(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"id": "124", "title": "Child"}`
	})

	res, err := svc.CreatePage(context.Background(), CreatePageParams{SpaceKey: "OPS", Title: "Child", Content: "x", ParentID: "77"})
	require.NoError(t, err)
	assert.Equal(t, "77", res.Page.Ancestors[0].ID)
	assert.Equal(t, 1, res.Page.Version.Number)
	assert.Equal(t, "page", res.Page.Type)
}

func TestCreatePageValidatesSpaceKey(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{}`
	})

	_, err := svc.CreatePage(context.Background(), CreatePageParams{SpaceKey: "ops", Title: "T", Content: "x"})
	ce := requireKind(t, err, KindBadRequest)
	assert.Contains(t, ce.Message, "spaceKey")
	assert.Equal(t, 0, rec.count())

	_, err = svc.CreatePage(context.Background(), CreatePageParams{SpaceKey: "OPS"})
	ce = requireKind(t, err, KindBadRequest)
	assert.Contains(t, ce.Message, "title")
	assert.Contains(t, ce.Message, "content")
}

func TestCreatePageAppliesCasePolicy(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"id": "1"}`
	}, WithSpaceKeyCase(CaseUpper, CasePreserve))

	_, err := svc.CreatePage(context.Background(), CreatePageParams{SpaceKey: "ops", Title: "T", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "OPS"}, rec.body(0)["space"])
}

func TestCreatePageErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		body     string
		kind     Kind
		contains string
	}{
		{"missing space", http.StatusNotFound, `{"message":"No space with key"}`, KindNotFound, `Space "OPS" not found`},
		{"duplicate title", http.StatusConflict, `{"message":"A page with this title already exists"}`, KindConflict, `title "Runbook" may already exist`},
		{"bad parent", http.StatusBadRequest, `{"message":"Could not find parent page"}`, KindBadRequest, `Invalid parent page ID "77"`},
		{"forbidden", http.StatusForbidden, `{}`, KindAuthorization, `create page in space "OPS"`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestService(t, func(*http.Request) (int, string) {
				return tc.status, tc.body
			})
			_, err := svc.CreatePage(context.Background(), CreatePageParams{SpaceKey: "OPS", Title: "Runbook", Content: "x", ParentID: "77"})
			ce := requireKind(t, err, tc.kind)
			assert.Contains(t, ce.Message, tc.contains)
		})
	}
}

func TestGetPageMissingStorageIsNull(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"id": "5", "type": "page", "title": "Empty", "body": {"view": {"value": "<p/>"}}}`
	})

	res, err := svc.GetPage(context.Background(), GetPageParams{PageID: "5"})
	require.NoError(t, err)

	req := rec.request(0)
	assert.Equal(t, "/rest/api/content/5", req.URL.Path)
	assert.Equal(t, "body.storage,version,space,ancestors,children.page,descendants.comment", req.URL.Query().Get("expand"))
	assert.Empty(t, req.URL.Query().Get("status"))

	assert.Nil(t, res.Page.Body.Storage)
	require.NotNil(t, res.Page.Body.View)
	assert.Equal(t, "view", res.Page.Body.View.Representation)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	body := decoded["page"].(map[string]any)["body"].(map[string]any)
	storage, present := body["storage"]
	assert.True(t, present, "storage key must be present")
	assert.Nil(t, storage)

	page := decoded["page"].(map[string]any)
	assert.Equal(t, []any{}, page["ancestors"])
	assert.Equal(t, map[string]any{"id": "", "key": "", "name": ""}, page["space"])
}

func TestGetPageNoBodyAtAll(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"id": "5"}`
	})

	res, err := svc.GetPage(context.Background(), GetPageParams{PageID: "5"})
	require.NoError(t, err)
	assert.Nil(t, res.Page.Body.Storage)
	assert.Equal(t, 0, res.Page.Version.Number)
	assert.Equal(t, "", res.Page.Version.By.DisplayName)
}

func TestGetPageHistoricalVersion(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(r *http.Request) (int, string) {
		if r.URL.Query().Get("version") == "9" {
			return http.StatusNotFound, `{"message":"not found"}`
		}
		return http.StatusOK, `{"id": "5", "status": "historical", "version": {"number": 3}}`
	})

	res, err := svc.GetPage(context.Background(), GetPageParams{PageID: "5", Version: 3, Expand: []string{"body.storage", " version "}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Page.Version.Number)

	query := rec.request(0).URL.Query()
	assert.Equal(t, "historical", query.Get("status"))
	assert.Equal(t, "3", query.Get("version"))
	assert.Equal(t, "body.storage,version", query.Get("expand"))

	_, err = svc.GetPage(context.Background(), GetPageParams{PageID: "5", Version: 9})
	ce := requireKind(t, err, KindNotFound)
	assert.Contains(t, ce.Message, `Version 9 of page "5" not found`)

	_, err = svc.GetPage(context.Background(), GetPageParams{PageID: "5", Version: -1})
	requireKind(t, err, KindBadRequest)
}

func TestUpdatePageRejectsStaleVersionLocally(t *testing.T) {
	t.Parallel()

	for _, submitted := range []int{5, 4, 1} {
		submitted := submitted
		t.Run("", func(t *testing.T) {
			t.Parallel()

			svc, rec := newTestService(t, func(r *http.Request) (int, string) {
				require.Equal(t, http.MethodGet, r.Method, "no update may be sent for a stale version")
				return http.StatusOK, `{"id": "12", "title": "T", "version": {"number": 5}, "body": {"storage": {"value": "old"}}}`
			})

			_, err := svc.UpdatePage(context.Background(), UpdatePageParams{PageID: "12", Content: "new", VersionNumber: submitted})
			ce := requireKind(t, err, KindConflict)
			assert.Contains(t, ce.Message, "Current version: 5")
			assert.Contains(t, ce.Message, "provided version: "+itoa(submitted))
			assert.Equal(t, 5, ce.CurrentVersion)
			assert.Equal(t, 1, rec.count())
		})
	}
}

func TestUpdatePageRejectsSkippedVersion(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"id": "12", "title": "T", "version": {"number": 5}}`
	})

	_, err := svc.UpdatePage(context.Background(), UpdatePageParams{PageID: "12", Title: "New", VersionNumber: 8})
	ce := requireKind(t, err, KindBadRequest)
	assert.Contains(t, ce.Message, "submit 6")
	assert.Equal(t, 1, rec.count())
}

func TestUpdatePagePartialMergesCurrentValues(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(r *http.Request) (int, string) {
		switch r.Method {
		case http.MethodGet:
			return http.StatusOK, `{"id": "12", "title": "Old title", "space": {"key": "ops"}, "version": {"number": 5}, "body": {"storage": {"value": "<p>old</p>"}}}`
		case http.MethodPut:
			return http.StatusOK, `{"id": "12", "title": "Old title", "version": {"number": 6, "message": "typo"}}`
		}
		return http.StatusMethodNotAllowed, ``
	})

	res, err := svc.UpdatePage(context.Background(), UpdatePageParams{
		PageID:         "12",
		Content:        "<p>new</p>",
		VersionNumber:  6,
		VersionMessage: "typo",
	})
	require.NoError(t, err)
	require.Equal(t, 2, rec.count())

	assert.Equal(t, "body.storage,version,space", rec.request(0).URL.Query().Get("expand"))

	sent := rec.body(1)
	assert.Equal(t, "Old title", sent["title"])
	assert.Equal(t, map[string]any{"key": "ops"}, sent["space"])
	assert.Equal(t, map[string]any{"number": float64(6), "message": "typo"}, sent["version"])
	assert.Equal(t, "<p>new</p>", sent["body"].(map[string]any)["storage"].(map[string]any)["value"])

	assert.Equal(t, 5, res.PreviousVersion)
	assert.Equal(t, "typo", res.UpdateMessage)
	assert.Equal(t, 6, res.Page.Version.Number)
}

func TestUpdatePageUpstreamConflict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		current string
	}{
		{"message phrase", `{"statusCode":409,"message":"Version must be incremented on update. Current version is: 8"}`, "Current version: 8"},
		{"json field", `{"message":"conflict","currentVersion":8}`, "Current version: 8"},
		{"unknown", `{"message":"conflict"}`, "Current version: unknown"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, rec := newTestService(t, func(r *http.Request) (int, string) {
				require.Equal(t, http.MethodPut, r.Method)
				return http.StatusConflict, tc.body
			})

			_, err := svc.UpdatePage(context.Background(), UpdatePageParams{PageID: "12", Title: "T", Content: "x", SpaceKey: "OPS", VersionNumber: 8})
			ce := requireKind(t, err, KindConflict)
			assert.Contains(t, ce.Message, tc.current)
			assert.Contains(t, ce.Message, "provided version: 8")
			assert.Equal(t, 1, rec.count())
		})
	}
}

func TestUpdatePageAppliesUpdateCasePolicy(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"id": "12", "version": {"number": 2}}`
	}, WithSpaceKeyCase(CasePreserve, CaseLower))

	res, err := svc.UpdatePage(context.Background(), UpdatePageParams{PageID: "12", Title: "T", Content: "x", SpaceKey: "OPS", VersionNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "ops"}, rec.body(0)["space"])
	assert.Equal(t, 1, res.PreviousVersion)
}

func TestUpdatePageRequiresVersion(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{}`
	})

	_, err := svc.UpdatePage(context.Background(), UpdatePageParams{PageID: "12", Title: "T"})
	ce := requireKind(t, err, KindBadRequest)
	assert.Contains(t, ce.Message, "versionNumber")
	assert.Equal(t, 0, rec.count())
}

func TestDeletePage(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, func(r *http.Request) (int, string) {
		return http.StatusNoContent, ``
	})

	res, err := svc.DeletePage(context.Background(), DeletePageParams{PageID: "12"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, rec.request(0).Method)
	assert.Equal(t, "/rest/api/content/12", rec.request(0).URL.Path)
	assert.False(t, res.Recoverable)
	assert.Equal(t, "permanent", res.DeleteType)
	assert.Equal(t, "12", res.Page.ID)
	assert.Equal(t, "deleted", res.Page.Status)
	assert.Equal(t, "2025-03-14T09:26:53Z", res.Page.Version.When)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"recoverable":false`)
}

func TestDeletePageConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, func(*http.Request) (int, string) {
		return http.StatusConflict, `{}`
	})

	_, err := svc.DeletePage(context.Background(), DeletePageParams{PageID: "12"})
	ce := requireKind(t, err, KindConflict)
	assert.Contains(t, ce.Message, "child pages")
}
