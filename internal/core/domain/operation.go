package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"mime"
	"net/url"
	"slices"
	"strings"
)

// OperationType identifies the HTTP verb family of an Operation.
type OperationType int

const (
	// OperationPost sends params as a form-encoded body.
	OperationPost OperationType = iota
	// OperationPostCustom sends a caller-defined header set and literal body.
	OperationPostCustom
	// OperationGet reads a resource.
	OperationGet
	// OperationDelete removes a resource.
	OperationDelete
	// OperationPostMultipart sends a multipart/form-data body.
	OperationPostMultipart
	// OperationPatch updates a resource.
	OperationPatch
)

var operationTypeNames = map[OperationType]string{
	OperationPost:          "post",
	OperationPostCustom:    "post-custom",
	OperationGet:           "get",
	OperationDelete:        "delete",
	OperationPostMultipart: "post-multipart",
	OperationPatch:         "patch",
}

func (t OperationType) String() string {
	if name, ok := operationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("OperationType(%d)", int(t))
}

// ParseOperationType is the inverse of OperationType.String.
func ParseOperationType(s string) (OperationType, error) {
	for t, name := range operationTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown operation type %q", s)
}

// ParamsSource tells a parameter-collection UI where a value comes from.
type ParamsSource int

const (
	// ParamsSourceTextEdit is typed free text.
	ParamsSourceTextEdit ParamsSource = 1
	// ParamsSourceGetNotebooks is picked from the notebook list.
	ParamsSourceGetNotebooks ParamsSource = 2
	// ParamsSourceGetPages is picked from the page list.
	ParamsSourceGetPages ParamsSource = 3
	// ParamsSourceGetSections is picked from the section list.
	ParamsSourceGetSections ParamsSource = 4
)

func (s ParamsSource) String() string {
	switch s {
	case ParamsSourceTextEdit:
		return "text"
	case ParamsSourceGetNotebooks:
		return "notebooks"
	case ParamsSourceGetPages:
		return "pages"
	case ParamsSourceGetSections:
		return "sections"
	default:
		return fmt.Sprintf("ParamsSource(%d)", int(s))
	}
}

// Well-known parameter keys shared by the catalog and the URL templates.
const (
	ParamsNotebookIDKey = "notebookId"
	ParamsSectionIDKey  = "sectionId"
	ParamsPageIDKey     = "pageId"
)

// MultiFormItem is one part of a multipart/form-data body.
type MultiFormItem struct {
	// Name is the form field name, referenced from the page HTML as name:<Name>.
	Name string
	// Filename is optional; when set the part is sent as a file part.
	Filename string
	// ContentType defaults to application/octet-stream when empty.
	ContentType string
	Content     []byte
}

// Payload is the kind-specific part of an Operation. The set of
// implementations is closed: StandardPayload, CustomPayload, MultipartPayload.
type Payload interface {
	payload()
}

// StandardPayload holds simple key-value parameters (Get, Post, Delete, Patch).
type StandardPayload struct {
	Params       map[string]string
	ParamsSource map[string]ParamsSource
}

// CustomPayload holds a literal request header set and body (PostCustom).
// Params still drive placeholder substitution in the URL and body.
type CustomPayload struct {
	Header       map[string]string
	Body         string
	Params       map[string]string
	ParamsSource map[string]ParamsSource
}

// MultipartPayload holds ordered multipart items (PostMultipart).
type MultipartPayload struct {
	Items []MultiFormItem
}

func (StandardPayload) payload()  {}
func (CustomPayload) payload()    {}
func (MultipartPayload) payload() {}

// Operation describes one invocable REST call. It is immutable after
// construction; accessors return copies.
type Operation struct {
	name              string
	urlTemplate       string
	kind              OperationType
	description       string
	documentationLink string
	responseAsHTML    bool
	payload           Payload
}

// NewOperation builds a Get, Post, Delete or Patch operation.
func NewOperation(
	name, urlTemplate string,
	kind OperationType,
	description, documentationLink string,
	params map[string]string,
	paramsSource map[string]ParamsSource,
) (*Operation, error) {
	switch kind {
	case OperationGet, OperationPost, OperationDelete, OperationPatch:
	default:
		return nil, &ConstructionError{Name: name, Kind: kind, Reason: "standard parameters require get, post, delete or patch"}
	}
	return newOperation(name, urlTemplate, kind, description, documentationLink, StandardPayload{
		Params:       maps.Clone(params),
		ParamsSource: maps.Clone(paramsSource),
	})
}

// NewCustomOperation builds a PostCustom operation.
func NewCustomOperation(
	name, urlTemplate string,
	kind OperationType,
	customHeader map[string]string,
	customBody string,
	description, documentationLink string,
	params map[string]string,
	paramsSource map[string]ParamsSource,
) (*Operation, error) {
	if kind != OperationPostCustom {
		return nil, &ConstructionError{Name: name, Kind: kind, Reason: "custom header and body require post-custom"}
	}
	return newOperation(name, urlTemplate, kind, description, documentationLink, CustomPayload{
		Header:       maps.Clone(customHeader),
		Body:         customBody,
		Params:       maps.Clone(params),
		ParamsSource: maps.Clone(paramsSource),
	})
}

// NewMultipartOperation builds a PostMultipart operation.
func NewMultipartOperation(
	name, urlTemplate string,
	kind OperationType,
	description, documentationLink string,
	items []MultiFormItem,
) (*Operation, error) {
	if kind != OperationPostMultipart {
		return nil, &ConstructionError{Name: name, Kind: kind, Reason: "multipart items require post-multipart"}
	}
	return newOperation(name, urlTemplate, kind, description, documentationLink, MultipartPayload{
		Items: cloneItems(items),
	})
}

func newOperation(name, urlTemplate string, kind OperationType, description, link string, p Payload) (*Operation, error) {
	if name == "" {
		return nil, &ConstructionError{Kind: kind, Reason: "name is empty"}
	}
	return &Operation{
		name:              name,
		urlTemplate:       urlTemplate,
		kind:              kind,
		description:       description,
		documentationLink: link,
		payload:           p,
	}, nil
}

// WithResponseAsHTML returns a copy that asks for the raw markup response.
// Only Get operations accept the flag.
func (o *Operation) WithResponseAsHTML() (*Operation, error) {
	if o.kind != OperationGet {
		return nil, &ConstructionError{Name: o.name, Kind: o.kind, Reason: "responseAsHTML is only valid for get"}
	}
	cp := *o
	cp.responseAsHTML = true
	return &cp, nil
}

// Name returns the display label.
func (o *Operation) Name() string { return o.name }

// URLTemplate returns the relative path, possibly with {key} placeholders.
func (o *Operation) URLTemplate() string { return o.urlTemplate }

// Kind returns the verb family.
func (o *Operation) Kind() OperationType { return o.kind }

// Description returns the display description.
func (o *Operation) Description() string { return o.description }

// DocumentationLink returns the API reference URL.
func (o *Operation) DocumentationLink() string { return o.documentationLink }

// ResponseAsHTML reports whether a Get response is delivered as raw text.
func (o *Operation) ResponseAsHTML() bool { return o.responseAsHTML }

// Payload returns the kind-specific payload for type switches.
func (o *Operation) Payload() Payload { return o.payload }

// Params returns the default parameter values, or nil for multipart operations.
func (o *Operation) Params() map[string]string {
	switch p := o.payload.(type) {
	case StandardPayload:
		return maps.Clone(p.Params)
	case CustomPayload:
		return maps.Clone(p.Params)
	}
	return nil
}

// ParamsSource returns how each parameter is collected, or nil for multipart operations.
func (o *Operation) ParamsSource() map[string]ParamsSource {
	switch p := o.payload.(type) {
	case StandardPayload:
		return maps.Clone(p.ParamsSource)
	case CustomPayload:
		return maps.Clone(p.ParamsSource)
	}
	return nil
}

// CustomHeader returns the literal headers of a PostCustom operation.
func (o *Operation) CustomHeader() map[string]string {
	if p, ok := o.payload.(CustomPayload); ok {
		return maps.Clone(p.Header)
	}
	return nil
}

// CustomBody returns the literal body template of a PostCustom operation.
func (o *Operation) CustomBody() string {
	if p, ok := o.payload.(CustomPayload); ok {
		return p.Body
	}
	return ""
}

// MultipartItems returns the ordered parts of a PostMultipart operation.
func (o *Operation) MultipartItems() []MultiFormItem {
	if p, ok := o.payload.(MultipartPayload); ok {
		return cloneItems(p.Items)
	}
	return nil
}

// ResolvePath substitutes {key} placeholders in the URL template with
// path-escaped values. Values not consumed by a placeholder are returned as
// the remaining parameters.
func (o *Operation) ResolvePath(values map[string]string) (string, map[string]string, error) {
	rest := maps.Clone(values)
	if rest == nil {
		rest = map[string]string{}
	}

	var b strings.Builder
	tmpl := o.urlTemplate
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			b.WriteString(tmpl)
			break
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			break
		}
		end += start

		key := tmpl[start+1 : end]
		val, ok := rest[key]
		if !ok || val == "" {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParam, key)
		}
		delete(rest, key)

		b.WriteString(tmpl[:start])
		b.WriteString(url.PathEscape(val))
		tmpl = tmpl[end+1:]
	}

	return b.String(), rest, nil
}

// ResolveBody substitutes {key} placeholders in the custom body. Values are
// inserted verbatim, except that a JSON body gets them escaped as the
// contents of a JSON string.
func (o *Operation) ResolveBody(values map[string]string) string {
	body := o.CustomBody()
	escape := o.jsonBody()
	keys := slices.Sorted(maps.Keys(values))
	for _, k := range keys {
		v := values[k]
		if escape {
			v = jsonStringContent(v)
		}
		body = strings.ReplaceAll(body, "{"+k+"}", v)
	}
	return body
}

// jsonBody reports whether the custom Content-Type is JSON.
func (o *Operation) jsonBody() bool {
	for k, v := range o.CustomHeader() {
		if !strings.EqualFold(k, "Content-Type") {
			continue
		}
		mediaType, _, err := mime.ParseMediaType(v)
		if err != nil {
			return false
		}
		return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
	}
	return false
}

func jsonStringContent(v string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return string(b[1 : len(b)-1])
}

func cloneItems(items []MultiFormItem) []MultiFormItem {
	if items == nil {
		return nil
	}
	out := make([]MultiFormItem, len(items))
	for i, it := range items {
		it.Content = slices.Clone(it.Content)
		out[i] = it
	}
	return out
}
