package wordpress

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesync/internal/cms"
	"firesync/internal/models"
	"firesync/testutil"
)

func newTestClient(t *testing.T, wp *testutil.FakeWordPress, perPage int) *Client {
	client, err := NewClient(Options{
		BaseURL:       wp.URL(),
		PerPage:       perPage,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func seedSite(wp *testutil.FakeWordPress) {
	wp.AddTaxonomy("category", "post")
	wp.AddTaxonomy("genre", "book")
	wp.AddType("post", "category")
	wp.AddType("book", "genre")

	wp.AddTerm("category", testutil.FakeTerm{ID: 1, Name: "News", Slug: "news", Count: 2, Posts: []int64{10, 11}})
	wp.AddTerm("category", testutil.FakeTerm{ID: 2, Name: "Events", Slug: "events", Meta: map[string]any{"color": []any{"red"}}})
	wp.AddTerm("category", testutil.FakeTerm{ID: 3, Name: "Archive", Slug: "archive", Parent: 1})

	wp.AddPost("post", testutil.FakePost{ID: 10, Title: "Hello", Status: "publish", FeaturedMedia: 99, Meta: map[string]any{"subtitle": "Hi"}})
	wp.AddPost("post", testutil.FakePost{ID: 11, Title: "Draft", Status: "draft"})
	wp.AddPost("book", testutil.FakePost{ID: 20, Title: "Dune", Status: "publish", ACF: map[string]any{"isbn": "9780441013593", "pages": 412}})
	wp.AddMedia(testutil.FakeMedia{ID: 99, URL: "https://example.com/a.jpg", Width: 800, Height: 600})
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestTypeListings(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)
	ctx := context.Background()

	taxonomies, err := client.ListTaxonomies(ctx)
	require.NoError(t, err)
	require.Len(t, taxonomies, 2)
	assert.Equal(t, "category", taxonomies[0].Slug)
	assert.Equal(t, []string{"post"}, taxonomies[0].Types)

	types, err := client.ListContentTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "book", types[0].Slug)
	assert.Equal(t, "posts", types[1].RestBase)

	exists, err := client.TaxonomyExists(ctx, "genre")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = client.ContentTypeExists(ctx, "movie")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListingsAreCachedUntilRefresh(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)
	ctx := context.Background()

	_, err := client.TaxonomyExists(ctx, "category")
	require.NoError(t, err)
	wp.RemoveTaxonomy("genre")

	exists, err := client.TaxonomyExists(ctx, "genre")
	require.NoError(t, err)
	assert.True(t, exists, "cached listing still has genre")

	client.Refresh()
	exists, err = client.TaxonomyExists(ctx, "genre")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListTermsPaginates(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 2)

	terms, err := client.ListTerms(context.Background(), "category")

	require.NoError(t, err)
	require.Len(t, terms, 3)
	assert.Equal(t, "News", terms[0].Name)
	assert.Equal(t, int64(2), terms[0].Count)
	assert.Equal(t, "category", terms[0].Taxonomy)
	assert.Equal(t, map[string]any{}, terms[0].Meta)
	assert.Equal(t, map[string]any{"color": "red"}, terms[1].Meta)
	assert.Equal(t, int64(1), terms[2].Parent)
}

func TestListTermsUnknownTaxonomy(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	client := newTestClient(t, wp, 0)

	_, err := client.ListTerms(context.Background(), "missing")

	assert.ErrorIs(t, err, cms.ErrNotFound)
}

func TestListItemsFiltersStatus(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)

	items, err := client.ListItems(context.Background(), "post", models.StatusPublish)

	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, int64(10), item.ID)
	assert.Equal(t, "post", item.Type)
	assert.True(t, item.Published())
	assert.Equal(t, int64(99), item.PrimaryImageID)
	assert.Equal(t, "Hello", item.Properties["title"])
	assert.Equal(t, "Hello", item.Properties["post_title"])
	assert.Equal(t, json.Number("10"), item.Properties["ID"])
	assert.Equal(t, "Hi", item.Meta["subtitle"])
	assert.Nil(t, item.CustomFields)
}

func TestItemMetaKeepsArrayValues(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	wp.AddType("post")
	wp.AddPost("post", testutil.FakePost{ID: 30, Title: "Gallery", Status: "publish", Meta: map[string]any{
		"gallery":  []any{"a.jpg", "b.jpg"},
		"sizes":    []any{[]any{"s", "m"}},
		"location": []any{map[string]any{"city": "Riyadh"}},
		"tags":     []any{},
		"mood":     []any{"calm"},
	}})
	client := newTestClient(t, wp, 0)

	item, err := client.GetItem(context.Background(), "post", 30)

	require.NoError(t, err)
	assert.Equal(t, []any{"a.jpg", "b.jpg"}, item.Meta["gallery"])
	assert.Equal(t, []any{[]any{"s", "m"}}, item.Meta["sizes"])
	assert.Equal(t, []any{map[string]any{"city": "Riyadh"}}, item.Meta["location"])
	assert.Equal(t, []any{}, item.Meta["tags"])
	assert.Equal(t, "calm", item.Meta["mood"])
}

func TestGetItem(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)
	ctx := context.Background()

	book, err := client.GetItem(ctx, "book", 20)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Properties["post_title"])

	value, found, err := client.GetFieldValue(ctx, book, "pages")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, json.Number("412"), value)

	_, err = client.GetItem(ctx, "book", 404)
	assert.ErrorIs(t, err, cms.ErrNotFound)
}

func TestGetImage(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)
	ctx := context.Background()

	img, found, err := client.GetImage(ctx, 99)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.Image{ID: 99, URL: "https://example.com/a.jpg", Width: 800, Height: 600}, img)

	_, found, err = client.GetImage(ctx, 5)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = client.GetImage(ctx, 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestItemTerms(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)

	refs, err := client.ItemTerms(context.Background(), models.ContentItem{ID: 10, Type: "post"}, "category")

	require.NoError(t, err)
	assert.Equal(t, []models.TermRef{{ID: 1, Name: "News", Slug: "news"}}, refs)

	refs, err = client.ItemTerms(context.Background(), models.ContentItem{ID: 12, Type: "post"}, "category")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCustomFieldsPlugin(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)
	ctx := context.Background()

	assert.False(t, client.IsActive(ctx))

	wp.EnableACF()
	client.Refresh()
	assert.True(t, client.IsActive(ctx))

	fields, err := client.ListFieldsForType(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, []cms.FieldInfo{
		{Key: "isbn", Label: "Isbn", Type: "text"},
		{Key: "pages", Label: "Pages", Type: "number"},
	}, fields)
}

func TestServerErrorsAreRetried(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	wp.FailNext("/taxonomies", http.StatusBadGateway, 2)
	client := newTestClient(t, wp, 0)

	exists, err := client.TaxonomyExists(context.Background(), "category")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.Len(t, wp.Requests(), 3)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	wp.FailNext("/taxonomies", http.StatusForbidden, 5)
	client := newTestClient(t, wp, 0)

	_, err := client.TaxonomyExists(context.Background(), "category")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "injected", apiErr.Code)
	assert.Len(t, wp.Requests(), 1)
}

func TestListMetaKeysForType(t *testing.T) {
	wp := testutil.NewFakeWordPress(t)
	seedSite(wp)
	client := newTestClient(t, wp, 0)
	ctx := context.Background()

	keys, err := client.ListMetaKeysForType(ctx, "post")
	require.NoError(t, err)
	assert.Equal(t, []string{"subtitle"}, keys)

	keys, err = client.ListMetaKeysForType(ctx, "book")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = client.ListMetaKeysForType(ctx, "movie")
	assert.Error(t, err)
}

func TestIntrinsicProperties(t *testing.T) {
	names := IntrinsicProperties()
	assert.Contains(t, names, "post_title")
	assert.Contains(t, names, "ID")
	assert.IsIncreasing(t, names)
}
