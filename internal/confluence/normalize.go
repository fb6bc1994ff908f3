package confluence

import (
	"fmt"
)

// The view types below are the fixed output shapes of every operation.
// Optional upstream fields are filled with zero values; absent body
// representations stay explicit nulls.

type LinksView struct {
	WebUI string `json:"webui"`
	Self  string `json:"self"`
}

type PageLinksView struct {
	Next string `json:"next"`
	Base string `json:"base"`
}

type PaginationView struct {
	Start     int `json:"start"`
	Limit     int `json:"limit"`
	Size      int `json:"size"`
	TotalSize int `json:"totalSize"`
}

type UserView struct {
	Type        string `json:"type"`
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

type VersionView struct {
	Number    int      `json:"number"`
	By        UserView `json:"by"`
	When      string   `json:"when"`
	Message   string   `json:"message"`
	MinorEdit bool     `json:"minorEdit"`
}

type RepresentationView struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type BodyView struct {
	Storage    *RepresentationView `json:"storage"`
	View       *RepresentationView `json:"view"`
	ExportView *RepresentationView `json:"export_view"`
}

type SpaceRefView struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ContentRefView struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type PageView struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	Title       string           `json:"title"`
	Space       SpaceRefView     `json:"space"`
	Body        BodyView         `json:"body"`
	Version     VersionView      `json:"version"`
	Ancestors   []ContentRefView `json:"ancestors"`
	Children    []ContentRefView `json:"children"`
	Descendants []CommentView    `json:"descendants"`
	Links       LinksView        `json:"_links"`
}

type CommentView struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Status    string           `json:"status"`
	Title     string           `json:"title"`
	Body      BodyView         `json:"body"`
	Version   VersionView      `json:"version"`
	Container ContentRefView   `json:"container"`
	Ancestors []ContentRefView `json:"ancestors"`
	Replies   []CommentView    `json:"replies"`
	Links     LinksView        `json:"_links"`
}

type SpaceView struct {
	ID          string           `json:"id"`
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	Description string           `json:"description"`
	Homepage    ContentRefView   `json:"homepage"`
	Permissions []PermissionView `json:"permissions"`
	Icon        IconView         `json:"icon"`
	Links       LinksView        `json:"_links"`
}

type PermissionView struct {
	Users      []UserView  `json:"users"`
	Groups     []GroupView `json:"groups"`
	Operation  string      `json:"operation"`
	TargetType string      `json:"targetType"`
}

type GroupView struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type IconView struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type VersionRecordView struct {
	Number    int              `json:"number"`
	By        UserView         `json:"by"`
	When      string           `json:"when"`
	Message   string           `json:"message"`
	MinorEdit bool             `json:"minorEdit"`
	Links     VersionLinksView `json:"_links"`
}

type VersionLinksView struct {
	Self    string `json:"self"`
	Content string `json:"content"`
}

func normalizeLinks(l Links) LinksView {
	return LinksView{WebUI: l.WebUI, Self: l.Self}
}

func normalizeUser(u *User) UserView {
	if u == nil {
		return UserView{}
	}
	return UserView{
		Type:        u.Type,
		AccountID:   firstNonEmpty(u.AccountID, u.Username, u.UserKey),
		DisplayName: u.DisplayName,
	}
}

// normalizeVersion uses fallback as the number when the upstream omitted it.
func normalizeVersion(v *Version, fallback int) VersionView {
	if v == nil {
		return VersionView{Number: fallback}
	}
	number := v.Number
	if number == 0 {
		number = fallback
	}
	return VersionView{
		Number:    number,
		By:        normalizeUser(v.By),
		When:      v.When,
		Message:   v.Message,
		MinorEdit: v.MinorEdit,
	}
}

func normalizeRepresentation(r *Representation, name string) *RepresentationView {
	if r == nil {
		return nil
	}
	return &RepresentationView{
		Value:          r.Value,
		Representation: firstNonEmpty(r.Representation, name),
	}
}

func normalizeBody(b *Body) BodyView {
	if b == nil {
		return BodyView{}
	}
	return BodyView{
		Storage:    normalizeRepresentation(b.Storage, "storage"),
		View:       normalizeRepresentation(b.View, "view"),
		ExportView: normalizeRepresentation(b.ExportView, "export_view"),
	}
}

func normalizeSpaceRef(s *SpaceRef) SpaceRefView {
	if s == nil {
		return SpaceRefView{}
	}
	return SpaceRefView{ID: s.ID.String(), Key: s.Key, Name: s.Name}
}

func normalizeRefs(items []Content) []ContentRefView {
	out := make([]ContentRefView, 0, len(items))
	for _, item := range items {
		out = append(out, ContentRefView{ID: item.ID, Type: item.Type, Title: item.Title})
	}
	return out
}

func normalizePage(c *Content, fallbackVersion int) PageView {
	view := PageView{
		ID:          c.ID,
		Type:        firstNonEmpty(c.Type, "page"),
		Status:      c.Status,
		Title:       c.Title,
		Space:       normalizeSpaceRef(c.Space),
		Body:        normalizeBody(c.Body),
		Version:     normalizeVersion(c.Version, fallbackVersion),
		Ancestors:   normalizeRefs(c.Ancestors),
		Children:    []ContentRefView{},
		Descendants: []CommentView{},
		Links:       normalizeLinks(c.Links),
	}
	if c.Children != nil && c.Children.Page != nil {
		view.Children = normalizeRefs(c.Children.Page.Results)
	}
	if c.Descendants != nil && c.Descendants.Comment != nil {
		view.Descendants = normalizeComments(c.Descendants.Comment.Results)
	}
	return view
}

func normalizeComment(c *Content, fallbackVersion int) CommentView {
	view := CommentView{
		ID:        c.ID,
		Type:      firstNonEmpty(c.Type, "comment"),
		Status:    c.Status,
		Title:     c.Title,
		Body:      normalizeBody(c.Body),
		Version:   normalizeVersion(c.Version, fallbackVersion),
		Ancestors: normalizeRefs(c.Ancestors),
		Replies:   []CommentView{},
		Links:     normalizeLinks(c.Links),
	}
	if c.Container != nil {
		view.Container = ContentRefView{
			ID:    c.Container.ID,
			Type:  firstNonEmpty(c.Container.Type, "page"),
			Title: c.Container.Title,
		}
	}
	if c.Children != nil && c.Children.Comment != nil {
		view.Replies = normalizeComments(c.Children.Comment.Results)
	}
	return view
}

func normalizeComments(items []Content) []CommentView {
	out := make([]CommentView, 0, len(items))
	for i := range items {
		out = append(out, normalizeComment(&items[i], 0))
	}
	return out
}

func normalizeSpace(s *Space) SpaceView {
	view := SpaceView{
		ID:          s.ID.String(),
		Key:         s.Key,
		Name:        s.Name,
		Type:        s.Type,
		Status:      s.Status,
		Permissions: make([]PermissionView, 0, len(s.Permissions)),
		Links:       normalizeLinks(s.Links),
	}

	if d := s.Description; d != nil {
		if d.Plain != nil {
			view.Description = d.Plain.Value
		} else {
			view.Description = d.Value
		}
	}

	if h := s.Homepage; h != nil {
		view.Homepage = ContentRefView{ID: h.ID, Type: firstNonEmpty(h.Type, "page"), Title: h.Title}
	}

	if i := s.Icon; i != nil {
		view.Icon = IconView{Path: i.Path, Width: i.Width, Height: i.Height}
	}

	for _, p := range s.Permissions {
		pv := PermissionView{Users: []UserView{}, Groups: []GroupView{}}
		if p.Subjects != nil {
			if p.Subjects.User != nil {
				for i := range p.Subjects.User.Results {
					pv.Users = append(pv.Users, normalizeUser(&p.Subjects.User.Results[i]))
				}
			}
			if p.Subjects.Group != nil {
				for _, g := range p.Subjects.Group.Results {
					pv.Groups = append(pv.Groups, GroupView{Type: g.Type, Name: g.Name})
				}
			}
		}
		if p.Operation != nil {
			pv.Operation = p.Operation.Operation
			pv.TargetType = p.Operation.TargetType
		}
		view.Permissions = append(view.Permissions, pv)
	}

	return view
}

func normalizeVersionRecord(pageID string, v *Version) VersionRecordView {
	return VersionRecordView{
		Number:    v.Number,
		By:        normalizeUser(v.By),
		When:      v.When,
		Message:   v.Message,
		MinorEdit: v.MinorEdit,
		Links: VersionLinksView{
			Self:    v.Links.Self,
			Content: historicalContentLink(pageID, v.Number),
		},
	}
}

// historicalContentLink is the REST path that returns the body of one
// historical version.
func historicalContentLink(pageID string, number int) string {
	return fmt.Sprintf("/rest/api/content/%s?status=historical&version=%d&expand=body.storage", pageID, number)
}

// normalizePagination falls back to the requested window when the upstream
// omitted it.
func normalizePagination[T any](p *ResultPage[T], start, limit int) (PaginationView, PageLinksView) {
	view := PaginationView{
		Start:     p.Start,
		Limit:     p.Limit,
		Size:      p.Size,
		TotalSize: p.TotalSize,
	}
	if view.Start == 0 {
		view.Start = start
	}
	if view.Limit == 0 {
		view.Limit = limit
	}
	if view.Size == 0 {
		view.Size = len(p.Results)
	}
	if view.TotalSize == 0 {
		view.TotalSize = view.Size
	}
	return view, PageLinksView{Next: p.Links.Next, Base: p.Links.Base}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
