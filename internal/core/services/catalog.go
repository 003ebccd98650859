package services

import (
	"encoding/base64"
	"fmt"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
)

// Ensure OperationCatalog implements the interface.
var _ driving.Catalog = (*OperationCatalog)(nil)

const docsBase = "https://learn.microsoft.com/graph/api/"

// Names of the built-in operations.
const (
	OpGetNotebooks             = "Get notebooks"
	OpGetNotebooksExpanded     = "Get notebooks with sections expanded"
	OpGetNotebook              = "Get notebook by id"
	OpCreateNotebook           = "Create notebook"
	OpGetSections              = "Get sections"
	OpGetSectionsInNotebook    = "Get sections in notebook"
	OpCreateSection            = "Create section in notebook"
	OpGetSectionGroups         = "Get section groups"
	OpGetPages                 = "Get pages"
	OpGetPagesInSection        = "Get pages in section"
	OpGetPage                  = "Get page metadata"
	OpGetPageContent           = "Get page content"
	OpSearchPages              = "Search pages by title"
	OpCreatePage               = "Create simple page"
	OpCreatePageWithImage      = "Create page with image"
	OpCreatePageWithAttachment = "Create page with embedded file"
	OpDeletePage               = "Delete page"
	OpUpdatePage               = "Update page content"
)

// pixelPNG is a 1x1 transparent PNG used as the sample image part.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// OperationCatalog is the static list of OneNote operations offered to the
// user. It is built once and never modified.
type OperationCatalog struct {
	ops    []*domain.Operation
	byName map[string]*domain.Operation
}

// NewOperationCatalog creates a catalog with the built-in operations.
func NewOperationCatalog() (*OperationCatalog, error) {
	c := &OperationCatalog{byName: make(map[string]*domain.Operation)}
	if err := c.registerBuiltinOperations(); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all operations in registration order.
func (c *OperationCatalog) List() []*domain.Operation {
	return append([]*domain.Operation(nil), c.ops...)
}

// Get returns an operation by name.
func (c *OperationCatalog) Get(name string) (*domain.Operation, error) {
	op, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("operation %q: %w", name, domain.ErrNotFound)
	}
	return op, nil
}

// ByKind returns all operations of the given kind in registration order.
func (c *OperationCatalog) ByKind(kind domain.OperationType) []*domain.Operation {
	var out []*domain.Operation
	for _, op := range c.ops {
		if op.Kind() == kind {
			out = append(out, op)
		}
	}
	return out
}

func (c *OperationCatalog) register(op *domain.Operation, err error) error {
	if err != nil {
		return err
	}
	if _, dup := c.byName[op.Name()]; dup {
		return fmt.Errorf("operation %q registered twice", op.Name())
	}
	c.ops = append(c.ops, op)
	c.byName[op.Name()] = op
	return nil
}

func (c *OperationCatalog) registerBuiltinOperations() error {
	for _, register := range []func() error{
		c.registerNotebooks,
		c.registerSections,
		c.registerSectionGroups,
		c.registerPages,
		c.registerPageCreation,
		c.registerPageChanges,
	} {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func (c *OperationCatalog) registerNotebooks() error {
	notebookID := map[string]string{domain.ParamsNotebookIDKey: ""}
	notebookSource := map[string]domain.ParamsSource{domain.ParamsNotebookIDKey: domain.ParamsSourceGetNotebooks}

	if err := c.register(domain.NewOperation(
		OpGetNotebooks, "notebooks", domain.OperationGet,
		"Retrieve the notebooks of the signed-in user.",
		docsBase+"onenote-list-notebooks",
		nil, nil,
	)); err != nil {
		return err
	}
	if err := c.register(domain.NewOperation(
		OpGetNotebooksExpanded, "notebooks", domain.OperationGet,
		"Retrieve notebooks together with their sections in one request.",
		docsBase+"onenote-list-notebooks",
		map[string]string{"$expand": "sections"},
		map[string]domain.ParamsSource{"$expand": domain.ParamsSourceTextEdit},
	)); err != nil {
		return err
	}
	if err := c.register(domain.NewOperation(
		OpGetNotebook, "notebooks/{notebookId}", domain.OperationGet,
		"Retrieve the properties of one notebook.",
		docsBase+"notebook-get",
		notebookID, notebookSource,
	)); err != nil {
		return err
	}
	return c.register(domain.NewCustomOperation(
		OpCreateNotebook, "notebooks", domain.OperationPostCustom,
		map[string]string{"Content-Type": "application/json"},
		`{"displayName":"{displayName}"}`,
		"Create a notebook. Names must be unique and at most 128 characters.",
		docsBase+"onenote-post-notebooks",
		map[string]string{"displayName": "OneNote Explorer notebook"},
		map[string]domain.ParamsSource{"displayName": domain.ParamsSourceTextEdit},
	))
}

func (c *OperationCatalog) registerSections() error {
	if err := c.register(domain.NewOperation(
		OpGetSections, "sections", domain.OperationGet,
		"Retrieve every section across all notebooks.",
		docsBase+"onenote-list-sections",
		nil, nil,
	)); err != nil {
		return err
	}
	if err := c.register(domain.NewOperation(
		OpGetSectionsInNotebook, "notebooks/{notebookId}/sections", domain.OperationGet,
		"Retrieve the sections of one notebook.",
		docsBase+"notebook-list-sections",
		map[string]string{domain.ParamsNotebookIDKey: ""},
		map[string]domain.ParamsSource{domain.ParamsNotebookIDKey: domain.ParamsSourceGetNotebooks},
	)); err != nil {
		return err
	}
	return c.register(domain.NewCustomOperation(
		OpCreateSection, "notebooks/{notebookId}/sections", domain.OperationPostCustom,
		map[string]string{"Content-Type": "application/json"},
		`{"displayName":"{displayName}"}`,
		"Create a section in a notebook.",
		docsBase+"notebook-post-sections",
		map[string]string{domain.ParamsNotebookIDKey: "", "displayName": "OneNote Explorer section"},
		map[string]domain.ParamsSource{
			domain.ParamsNotebookIDKey: domain.ParamsSourceGetNotebooks,
			"displayName":              domain.ParamsSourceTextEdit,
		},
	))
}

func (c *OperationCatalog) registerSectionGroups() error {
	return c.register(domain.NewOperation(
		OpGetSectionGroups, "sectionGroups", domain.OperationGet,
		"Retrieve every section group across all notebooks.",
		docsBase+"onenote-list-sectiongroups",
		nil, nil,
	))
}

func (c *OperationCatalog) registerPages() error {
	pageID := map[string]string{domain.ParamsPageIDKey: ""}
	pageSource := map[string]domain.ParamsSource{domain.ParamsPageIDKey: domain.ParamsSourceGetPages}

	if err := c.register(domain.NewOperation(
		OpGetPages, "pages", domain.OperationGet,
		"Retrieve pages, most recently modified first.",
		docsBase+"onenote-list-pages",
		map[string]string{"$orderby": "lastModifiedDateTime desc", "$top": "20"},
		map[string]domain.ParamsSource{"$orderby": domain.ParamsSourceTextEdit, "$top": domain.ParamsSourceTextEdit},
	)); err != nil {
		return err
	}
	if err := c.register(domain.NewOperation(
		OpGetPagesInSection, "sections/{sectionId}/pages", domain.OperationGet,
		"Retrieve the pages of one section.",
		docsBase+"section-list-pages",
		map[string]string{domain.ParamsSectionIDKey: ""},
		map[string]domain.ParamsSource{domain.ParamsSectionIDKey: domain.ParamsSourceGetSections},
	)); err != nil {
		return err
	}
	if err := c.register(domain.NewOperation(
		OpGetPage, "pages/{pageId}", domain.OperationGet,
		"Retrieve the metadata of one page.",
		docsBase+"page-get",
		pageID, pageSource,
	)); err != nil {
		return err
	}

	content, err := domain.NewOperation(
		OpGetPageContent, "pages/{pageId}/content", domain.OperationGet,
		"Retrieve the HTML content of one page.",
		docsBase+"page-get",
		pageID, pageSource,
	)
	if err == nil {
		content, err = content.WithResponseAsHTML()
	}
	if err := c.register(content, err); err != nil {
		return err
	}

	return c.register(domain.NewOperation(
		OpSearchPages, "pages", domain.OperationGet,
		"Find pages whose title contains a word (OData $filter).",
		docsBase+"onenote-list-pages",
		map[string]string{"$filter": "contains(tolower(title),'meeting')"},
		map[string]domain.ParamsSource{"$filter": domain.ParamsSourceTextEdit},
	))
}

func (c *OperationCatalog) registerPageCreation() error {
	if err := c.register(domain.NewCustomOperation(
		OpCreatePage, "sections/{sectionId}/pages", domain.OperationPostCustom,
		map[string]string{"Content-Type": "text/html"},
		`<!DOCTYPE html><html><head><title>{title}</title></head>`+
			`<body><p>{body}</p></body></html>`,
		"Create a page from simple HTML in a section.",
		docsBase+"section-post-pages",
		map[string]string{
			domain.ParamsSectionIDKey: "",
			"title":                   "A page created by OneNote Explorer",
			"body":                    "Hello from OneNote Explorer.",
		},
		map[string]domain.ParamsSource{
			domain.ParamsSectionIDKey: domain.ParamsSourceGetSections,
			"title":                   domain.ParamsSourceTextEdit,
			"body":                    domain.ParamsSourceTextEdit,
		},
	)); err != nil {
		return err
	}

	pixel, err := base64.StdEncoding.DecodeString(pixelPNG)
	if err != nil {
		return fmt.Errorf("decode sample image: %w", err)
	}
	if err := c.register(domain.NewMultipartOperation(
		OpCreatePageWithImage, "pages", domain.OperationPostMultipart,
		"Create a page in the default section with an image sent as a separate part.",
		docsBase+"section-post-pages",
		[]domain.MultiFormItem{
			{
				Name:        "Presentation",
				ContentType: "text/html",
				Content: []byte(`<!DOCTYPE html><html><head><title>Page with image</title></head>` +
					`<body><p>An image sent as a multipart part:</p>` +
					`<img src="name:image1" alt="pixel" width="32" height="32" /></body></html>`),
			},
			{Name: "image1", Filename: "pixel.png", ContentType: "image/png", Content: pixel},
		},
	)); err != nil {
		return err
	}

	return c.register(domain.NewMultipartOperation(
		OpCreatePageWithAttachment, "pages", domain.OperationPostMultipart,
		"Create a page in the default section with an embedded file attachment.",
		docsBase+"section-post-pages",
		[]domain.MultiFormItem{
			{
				Name:        "Presentation",
				ContentType: "text/html",
				Content: []byte(`<!DOCTYPE html><html><head><title>Page with attachment</title></head>` +
					`<body><p>An embedded file:</p>` +
					`<object data-attachment="notes.txt" data="name:embedded1" type="text/plain" /></body></html>`),
			},
			{
				Name:        "embedded1",
				Filename:    "notes.txt",
				ContentType: "text/plain",
				Content:     []byte("Attached by OneNote Explorer.\n"),
			},
		},
	))
}

func (c *OperationCatalog) registerPageChanges() error {
	pageID := map[string]string{domain.ParamsPageIDKey: ""}
	pageSource := map[string]domain.ParamsSource{domain.ParamsPageIDKey: domain.ParamsSourceGetPages}

	if err := c.register(domain.NewOperation(
		OpDeletePage, "pages/{pageId}", domain.OperationDelete,
		"Delete a page.",
		docsBase+"page-delete",
		pageID, pageSource,
	)); err != nil {
		return err
	}
	return c.register(domain.NewOperation(
		OpUpdatePage, "pages/{pageId}/content", domain.OperationPatch,
		"Send a query-only PATCH to a page's content. Graph requires a JSON array of "+
			"change commands in the body, which this verb does not carry, so the server "+
			"answers 400 Bad Request; use it to inspect the PATCH round trip and the error payload.",
		docsBase+"page-update",
		pageID, pageSource,
	))
}
