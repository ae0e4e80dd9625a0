package limsapi

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"limsepp/pkg/field"
)

// Kind identifies a LIMS resource category.
type Kind string

const (
	KindProcess  Kind = "process"
	KindArtifact Kind = "artifact"
	KindSample   Kind = "sample"
	KindProject  Kind = "project"
)

func (k Kind) path() string { return string(k) + "s" }

// udfField is one user-defined field element in a resource document. The
// declared type attribute drives client-side validation before a PUT.
type udfField struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type ref struct {
	LimsID string `xml:"limsid,attr"`
	URI    string `xml:"uri,attr,omitempty"`
}

type ioMap struct {
	Input  *ioNode `xml:"input"`
	Output *ioNode `xml:"output"`
}

type ioNode struct {
	LimsID         string `xml:"limsid,attr"`
	URI            string `xml:"uri,attr,omitempty"`
	OutputType     string `xml:"output-type,attr,omitempty"`
	GenerationType string `xml:"output-generation-type,attr,omitempty"`
}

// entityDoc is the shared wire document for the four resource kinds; elements
// that do not apply to a kind are simply empty.
type entityDoc struct {
	XMLName xml.Name
	LimsID  string     `xml:"limsid,attr,omitempty"`
	URI     string     `xml:"uri,attr,omitempty"`
	Name    string     `xml:"name,omitempty"`
	Type    string     `xml:"type,omitempty"`
	QCFlag  string     `xml:"qc-flag,omitempty"`
	IOMaps  []ioMap    `xml:"input-output-map,omitempty"`
	Samples []ref      `xml:"sample,omitempty"`
	Project *ref       `xml:"project,omitempty"`
	File    *ref       `xml:"file,omitempty"`
	UDFs    []udfField `xml:"field,omitempty"`
}

// Resource is a remote-backed LIMS entity. It satisfies field.Entity;
// staged UDF writes become remote state on Persist.
type Resource struct {
	client *Client
	kind   Kind
	id     string
	doc    entityDoc
	staged map[string]field.Value
}

var _ field.Entity = (*Resource)(nil)

func (c *Client) fetch(ctx context.Context, kind Kind, id string) (*Resource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%s id required", kind)
	}
	var doc entityDoc
	if err := c.getXML(ctx, c.endpoint(kind.path(), id), &doc); err != nil {
		return nil, err
	}
	if doc.LimsID == "" {
		doc.LimsID = id
	}
	return &Resource{client: c, kind: kind, id: doc.LimsID, doc: doc, staged: make(map[string]field.Value)}, nil
}

// Process fetches a process by its LIMS id.
func (c *Client) Process(ctx context.Context, id string) (*Resource, error) {
	return c.fetch(ctx, KindProcess, id)
}

// Artifact fetches an artifact by its LIMS id.
func (c *Client) Artifact(ctx context.Context, id string) (*Resource, error) {
	return c.fetch(ctx, KindArtifact, id)
}

// Sample fetches a sample by its LIMS id.
func (c *Client) Sample(ctx context.Context, id string) (*Resource, error) {
	return c.fetch(ctx, KindSample, id)
}

// Project fetches a project by its LIMS id.
func (c *Client) Project(ctx context.Context, id string) (*Resource, error) {
	return c.fetch(ctx, KindProject, id)
}

// ID returns the LIMS id.
func (r *Resource) ID() string { return r.id }

// Name returns the resource name; processes are named by their type.
func (r *Resource) Name() string {
	if r.doc.Name != "" {
		return r.doc.Name
	}
	return r.doc.Type
}

// Kind returns the resource category.
func (r *Resource) Kind() string { return string(r.kind) }

// UDF looks up a user-defined field, staged writes first.
func (r *Resource) UDF(name string) (field.Value, bool) {
	if v, ok := r.staged[name]; ok {
		return v, true
	}
	for _, u := range r.doc.UDFs {
		if u.Name == name {
			return field.String(u.Value), true
		}
	}
	return field.Absent(), false
}

// SetUDF stages a user-defined field write.
func (r *Resource) SetUDF(name string, v field.Value) { r.staged[name] = v }

// Attribute exposes the native fields used for log formatting.
func (r *Resource) Attribute(name string) (field.Value, bool) {
	switch name {
	case "name":
		if r.doc.Name != "" {
			return field.String(r.doc.Name), true
		}
	case "type":
		if r.doc.Type != "" {
			return field.String(r.doc.Type), true
		}
	case "qc-flag":
		if r.doc.QCFlag != "" {
			return field.String(r.doc.QCFlag), true
		}
	}
	return field.Absent(), false
}

// declaredType returns the field type the LIMS declared for a UDF name, if
// the fetched document carried one.
func (r *Resource) declaredType(name string) string {
	for _, u := range r.doc.UDFs {
		if u.Name == name {
			return u.Type
		}
	}
	return ""
}

// Persist validates staged values against their declared types and PUTs the
// updated document. Type violations surface as field.TypeMismatchError
// without touching the remote; any refused PUT surfaces as
// field.RejectedError.
func (r *Resource) Persist(ctx context.Context) error {
	if len(r.staged) == 0 {
		return nil
	}
	for name, v := range r.staged {
		if err := checkDeclaredType(r.declaredType(name), v); err != nil {
			return field.TypeMismatchError{Entity: r.id, Field: name, Err: err}
		}
	}
	updated := r.doc
	updated.UDFs = mergeUDFs(r.doc.UDFs, r.staged)
	status, err := r.client.putXML(ctx, r.client.endpoint(r.kind.path(), r.id), &updated)
	if err != nil {
		return field.RejectedError{Entity: r.id, Status: status, Err: err}
	}
	r.doc = updated
	r.staged = make(map[string]field.Value)
	return nil
}

func checkDeclaredType(declared string, v field.Value) error {
	if !v.Present() {
		return nil
	}
	switch strings.ToLower(declared) {
	case "numeric":
		if _, err := strconv.ParseFloat(strings.TrimSpace(v.Render()), 64); err != nil {
			return fmt.Errorf("%q is not numeric", v.Render())
		}
	}
	return nil
}

// mergeUDFs applies staged writes over the fetched field list, keeping the
// original element order for untouched fields.
func mergeUDFs(existing []udfField, staged map[string]field.Value) []udfField {
	out := make([]udfField, 0, len(existing)+len(staged))
	seen := make(map[string]bool, len(staged))
	for _, u := range existing {
		if v, ok := staged[u.Name]; ok {
			seen[u.Name] = true
			if !v.Present() {
				continue
			}
			u.Value = v.Render()
		}
		out = append(out, u)
	}
	for name, v := range staged {
		if seen[name] || !v.Present() {
			continue
		}
		out = append(out, udfField{Name: name, Value: v.Render()})
	}
	return out
}
