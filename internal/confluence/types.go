package confluence

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexibleID decodes identifiers that the REST API returns as either a
// JSON number or a string.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// Links holds the _links object present on most resources.
type Links struct {
	WebUI   string `json:"webui"`
	Self    string `json:"self"`
	TinyUI  string `json:"tinyui"`
	Base    string `json:"base"`
	Context string `json:"context"`
	Next    string `json:"next"`
}

// Representation is one rendering of a content body.
type Representation struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// Body holds the expanded body representations of a content item.
type Body struct {
	Storage    *Representation `json:"storage"`
	View       *Representation `json:"view"`
	ExportView *Representation `json:"export_view"`
}

// User is a version author or permission subject.
type User struct {
	Type           string `json:"type"`
	AccountID      string `json:"accountId"`
	Username       string `json:"username"`
	UserKey        string `json:"userKey"`
	DisplayName    string `json:"displayName"`
	ProfilePicture *struct {
		Path string `json:"path"`
	} `json:"profilePicture"`
}

// Version is a content version record.
type Version struct {
	Number    int    `json:"number"`
	When      string `json:"when"`
	Message   string `json:"message"`
	MinorEdit bool   `json:"minorEdit"`
	By        *User  `json:"by"`
	Links     Links  `json:"_links"`
}

// SpaceRef is the space summary embedded in content.
type SpaceRef struct {
	ID    FlexibleID `json:"id"`
	Key   string     `json:"key"`
	Name  string     `json:"name"`
	Links Links      `json:"_links"`
}

// Content is a page or comment.
type Content struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Space       *SpaceRef `json:"space"`
	Body        *Body     `json:"body"`
	Version     *Version  `json:"version"`
	Ancestors   []Content `json:"ancestors"`
	Children    *Children `json:"children"`
	Descendants *Children `json:"descendants"`
	Container   *Content  `json:"container"`
	Links       Links     `json:"_links"`
}

// Children holds the nested child or descendant collections of content.
type Children struct {
	Page    *ResultPage[Content] `json:"page"`
	Comment *ResultPage[Content] `json:"comment"`
}

// ResultPage is the pagination envelope wrapping every list response.
type ResultPage[T any] struct {
	Results   []T   `json:"results"`
	Start     int   `json:"start"`
	Limit     int   `json:"limit"`
	Size      int   `json:"size"`
	TotalSize int   `json:"totalSize"`
	Links     Links `json:"_links"`
}

// Space is a space as returned by GET /space.
type Space struct {
	ID          FlexibleID        `json:"id"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Description *SpaceDescription `json:"description"`
	Homepage    *Content          `json:"homepage"`
	Permissions []Permission      `json:"permissions"`
	Icon        *Icon             `json:"icon"`
	Links       Links             `json:"_links"`
}

// SpaceDescription is either {plain:{value}} or a flat {value}.
type SpaceDescription struct {
	Plain          *Representation `json:"plain"`
	Value          string          `json:"value"`
	Representation string          `json:"representation"`
}

// Permission is one space permission grant.
type Permission struct {
	Subjects  *PermissionSubjects `json:"subjects"`
	Operation *struct {
		Operation  string `json:"operation"`
		TargetType string `json:"targetType"`
	} `json:"operation"`
}

// PermissionSubjects lists the users and groups a permission applies to.
type PermissionSubjects struct {
	User  *ResultPage[User]  `json:"user"`
	Group *ResultPage[Group] `json:"group"`
}

// Group is a permission subject group.
type Group struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Icon is a space icon.
type Icon struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// idRef, storageBody and friends are the request shapes sent upstream.
type idRef struct {
	ID string `json:"id"`
}

type keyRef struct {
	Key string `json:"key"`
}

type storageBody struct {
	Storage Representation `json:"storage"`
}

type containerRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type versionRef struct {
	Number  int    `json:"number"`
	Message string `json:"message"`
}

type contentRequest struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Title     string        `json:"title,omitempty"`
	Space     *keyRef       `json:"space,omitempty"`
	Body      *storageBody  `json:"body,omitempty"`
	Ancestors []idRef       `json:"ancestors,omitempty"`
	Container *containerRef `json:"container,omitempty"`
	Version   *versionRef   `json:"version,omitempty"`
}

func storage(value string) *storageBody {
	return &storageBody{Storage: Representation{Value: value, Representation: "storage"}}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
