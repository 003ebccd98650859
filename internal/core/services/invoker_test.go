package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

// call records one dispatcher invocation.
type call struct {
	verb   string
	path   string
	query  map[string]string
	html   bool
	header map[string]string
	body   string
	items  []domain.MultiFormItem
}

// fakeDispatcher answers every request from a queue of canned responses.
type fakeDispatcher struct {
	mu        sync.Mutex
	calls     []call
	responses []*domain.Response
	err       error
}

func (f *fakeDispatcher) record(c call) <-chan domain.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return domain.Fail(f.err)
	}
	if len(f.responses) == 0 {
		return domain.Succeed(&domain.Response{StatusCode: http.StatusOK})
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return domain.Succeed(resp)
}

func (f *fakeDispatcher) Get(_ context.Context, path string, query map[string]string, html bool) <-chan domain.Result {
	return f.record(call{verb: "GET", path: path, query: query, html: html})
}

func (f *fakeDispatcher) Post(_ context.Context, path string, params map[string]string) <-chan domain.Result {
	return f.record(call{verb: "POST", path: path, query: params})
}

func (f *fakeDispatcher) PostCustom(_ context.Context, path string, header map[string]string, body string) <-chan domain.Result {
	return f.record(call{verb: "POST-CUSTOM", path: path, header: header, body: body})
}

func (f *fakeDispatcher) Delete(_ context.Context, path string, query map[string]string) <-chan domain.Result {
	return f.record(call{verb: "DELETE", path: path, query: query})
}

func (f *fakeDispatcher) Patch(_ context.Context, path string, query map[string]string) <-chan domain.Result {
	return f.record(call{verb: "PATCH", path: path, query: query})
}

func (f *fakeDispatcher) PostMultipart(
	_ context.Context, path string, query map[string]string, items []domain.MultiFormItem,
) <-chan domain.Result {
	return f.record(call{verb: "MULTIPART", path: path, query: query, items: items})
}

func mustGet(t *testing.T, name string) *domain.Operation {
	t.Helper()
	catalog, err := NewOperationCatalog()
	require.NoError(t, err)
	op, err := catalog.Get(name)
	require.NoError(t, err)
	return op
}

func TestInvoker_RoutesByKind(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		values   map[string]string
		wantVerb string
		wantPath string
	}{
		{"get", OpGetNotebooks, nil, "GET", "notebooks"},
		{"get with id", OpGetNotebook, map[string]string{"notebookId": "nb-1"}, "GET", "notebooks/nb-1"},
		{"post custom", OpCreateSection, map[string]string{"notebookId": "nb-1"}, "POST-CUSTOM", "notebooks/nb-1/sections"},
		{"delete", OpDeletePage, map[string]string{"pageId": "p-1"}, "DELETE", "pages/p-1"},
		{"patch", OpUpdatePage, map[string]string{"pageId": "p-1"}, "PATCH", "pages/p-1/content"},
		{"multipart", OpCreatePageWithImage, nil, "MULTIPART", "pages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			inv := NewInvoker(d)

			_, err := domain.Await(context.Background(), inv.Invoke(context.Background(), mustGet(t, tt.op), tt.values))

			require.NoError(t, err)
			require.Len(t, d.calls, 1)
			assert.Equal(t, tt.wantVerb, d.calls[0].verb)
			assert.Equal(t, tt.wantPath, d.calls[0].path)
		})
	}
}

func TestInvoker_Post(t *testing.T) {
	op, err := domain.NewOperation("form post", "sections/{sectionId}/copy", domain.OperationPost, "", "",
		map[string]string{"sectionId": "", "renameAs": "default"}, nil)
	require.NoError(t, err)
	d := &fakeDispatcher{}

	_, err = domain.Await(context.Background(), NewInvoker(d).Invoke(context.Background(), op,
		map[string]string{"sectionId": "s 1"}))

	require.NoError(t, err)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "POST", d.calls[0].verb)
	assert.Equal(t, "sections/s%201/copy", d.calls[0].path)
	assert.Equal(t, map[string]string{"renameAs": "default"}, d.calls[0].query)
}

func TestInvoker_MergesDefaultsAndDropsEmpty(t *testing.T) {
	d := &fakeDispatcher{}
	inv := NewInvoker(d)

	<-inv.Invoke(context.Background(), mustGet(t, OpGetPages), map[string]string{"$top": "5", "$skip": ""})

	require.Len(t, d.calls, 1)
	assert.Equal(t, map[string]string{"$orderby": "lastModifiedDateTime desc", "$top": "5"}, d.calls[0].query)
}

func TestInvoker_HTMLContent(t *testing.T) {
	d := &fakeDispatcher{}

	<-NewInvoker(d).Invoke(context.Background(), mustGet(t, OpGetPageContent), map[string]string{"pageId": "p-1"})

	require.Len(t, d.calls, 1)
	assert.True(t, d.calls[0].html)
	assert.Empty(t, d.calls[0].query)
}

func TestInvoker_CustomBody(t *testing.T) {
	d := &fakeDispatcher{}

	<-NewInvoker(d).Invoke(context.Background(), mustGet(t, OpCreatePage), map[string]string{
		"sectionId": "s-1",
		"title":     "Standup",
	})

	require.Len(t, d.calls, 1)
	c := d.calls[0]
	assert.Equal(t, "sections/s-1/pages", c.path)
	assert.Equal(t, "text/html", c.header["Content-Type"])
	assert.Contains(t, c.body, "<title>Standup</title>")
	assert.Contains(t, c.body, "Hello from OneNote Explorer.")
}

func TestInvoker_JSONBodyEscapesValues(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		values map[string]string
	}{
		{"notebook", OpCreateNotebook, map[string]string{"displayName": `My "Work" notes`}},
		{"section", OpCreateSection, map[string]string{"notebookId": "nb-1", "displayName": "a\\b\tc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}

			<-NewInvoker(d).Invoke(context.Background(), mustGet(t, tt.op), tt.values)

			require.Len(t, d.calls, 1)
			body := d.calls[0].body
			require.True(t, json.Valid([]byte(body)), body)
			var decoded map[string]string
			require.NoError(t, json.Unmarshal([]byte(body), &decoded))
			assert.Equal(t, tt.values["displayName"], decoded["displayName"])
		})
	}
}

func TestInvoker_MultipartItems(t *testing.T) {
	d := &fakeDispatcher{}

	<-NewInvoker(d).Invoke(context.Background(), mustGet(t, OpCreatePageWithAttachment), map[string]string{"sectionName": "Inbox"})

	require.Len(t, d.calls, 1)
	require.Len(t, d.calls[0].items, 2)
	assert.Equal(t, "embedded1", d.calls[0].items[1].Name)
	assert.Equal(t, map[string]string{"sectionName": "Inbox"}, d.calls[0].query)
}

func TestInvoker_MissingParam(t *testing.T) {
	d := &fakeDispatcher{}
	var failures int

	<-domain.Deliver(
		NewInvoker(d).Invoke(context.Background(), mustGet(t, OpDeletePage), nil),
		func(http.Header, *domain.Response) {},
		func(err error) {
			failures++
			assert.ErrorIs(t, err, domain.ErrMissingParam)
		},
	)

	assert.Equal(t, 1, failures)
	assert.Empty(t, d.calls, "nothing is sent when the path cannot be built")
}

func TestInvoker_PropagatesFailure(t *testing.T) {
	want := &domain.StatusError{StatusCode: http.StatusUnauthorized}
	d := &fakeDispatcher{err: want}

	_, err := domain.Await(context.Background(), NewInvoker(d).Invoke(context.Background(), mustGet(t, OpGetNotebooks), nil))

	assert.ErrorIs(t, err, domain.ErrHTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, domain.StatusCode(err))
}

func TestInvoker_ListChoices(t *testing.T) {
	d := &fakeDispatcher{responses: []*domain.Response{
		{StatusCode: 200, Body: map[string]any{
			"value": []any{
				map[string]any{"id": "nb-1", "displayName": "Work"},
				map[string]any{"displayName": "no id"},
			},
			"@odata.nextLink": "https://graph.microsoft.com/v1.0/me/onenote/notebooks?$skip=1",
		}},
		{StatusCode: 200, Body: map[string]any{
			"value": []any{map[string]any{"id": "nb-2", "displayName": "Home"}},
		}},
	}}

	choices, err := NewInvoker(d).ListChoices(context.Background(), domain.ParamsSourceGetNotebooks)

	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, "nb-1", choices[0].ID)
	assert.Equal(t, "Work", choices[0].Label)
	assert.Equal(t, "nb-2", choices[1].ID)

	require.Len(t, d.calls, 2)
	assert.Equal(t, "notebooks", d.calls[0].path)
	assert.Equal(t, "id,displayName", d.calls[0].query["$select"])
	assert.Equal(t, "https://graph.microsoft.com/v1.0/me/onenote/notebooks?$skip=1", d.calls[1].path)
	assert.Nil(t, d.calls[1].query)
}

func TestInvoker_ListChoicesPages(t *testing.T) {
	d := &fakeDispatcher{responses: []*domain.Response{
		{StatusCode: 200, Body: map[string]any{"value": []any{map[string]any{"id": "p-1", "title": "Standup"}}}},
	}}

	choices, err := NewInvoker(d).ListChoices(context.Background(), domain.ParamsSourceGetPages)

	require.NoError(t, err)
	require.Len(t, choices, 1)
	assert.Equal(t, "Standup", choices[0].Label)
	assert.Equal(t, "pages", d.calls[0].path)
}

func TestInvoker_ListChoicesText(t *testing.T) {
	d := &fakeDispatcher{}

	choices, err := NewInvoker(d).ListChoices(context.Background(), domain.ParamsSourceTextEdit)

	require.NoError(t, err)
	assert.Nil(t, choices)
	assert.Empty(t, d.calls)
}

func TestInvoker_ListChoicesErrors(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("offline")}
	_, err := NewInvoker(d).ListChoices(context.Background(), domain.ParamsSourceGetSections)
	assert.ErrorContains(t, err, "offline")

	d = &fakeDispatcher{responses: []*domain.Response{{StatusCode: 200, Body: "<html/>"}}}
	_, err = NewInvoker(d).ListChoices(context.Background(), domain.ParamsSourceGetSections)
	assert.ErrorIs(t, err, domain.ErrParse)
}
