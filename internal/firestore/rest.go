package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"firesync/internal/auth"
	"firesync/internal/models"
	"firesync/pkg/log"
)

const maxErrorBody = 64 << 10

// RESTTransport talks to the document REST API over plain HTTP.
type RESTTransport struct {
	endpoint   Endpoint
	httpClient *http.Client
	tokens     auth.Source
	logger     zerolog.Logger
}

func NewRESTTransport(endpoint Endpoint, tokens auth.Source, httpClient *http.Client) *RESTTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if tokens == nil {
		tokens = auth.EmulatorSource{}
	}
	return &RESTTransport{
		endpoint:   endpoint,
		httpClient: httpClient,
		tokens:     tokens,
		logger: log.Logger.With().
			Str("component", "firestore_rest").
			Str("project", endpoint.ProjectID).
			Logger(),
	}
}

func (t *RESTTransport) Name() string { return "rest" }

func (t *RESTTransport) Probe(ctx context.Context) (bool, error) {
	if _, err := t.listCollectionIDs(ctx, "probe", t.endpoint.DocumentsRoot(), 1); err != nil {
		return false, err
	}
	return true, nil
}

func (t *RESTTransport) Get(ctx context.Context, path string) (*models.SyncDocument, bool, error) {
	const op = "get"
	clean, err := cleanDocumentPath(op, path)
	if err != nil {
		return nil, false, err
	}

	var doc wireDocument
	err = t.do(ctx, op, clean, http.MethodGet, t.endpoint.resourceURL(t.endpoint.DocumentName(clean)), nil, &doc)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return DecodeFields(doc.Fields), true, nil
}

// Upsert checks whether the document exists, creates it through its parent
// collection when it does not, and otherwise updates it. A merge update lists
// every top-level field in the update mask.
func (t *RESTTransport) Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error {
	const op = "upsert"
	clean, err := cleanDocumentPath(op, path)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = models.NewSyncDocument()
	}
	logger := t.logger.With().Str("action", op).Str("path", clean).Bool("merge", merge).Logger()

	_, exists, err := t.Get(ctx, clean)
	if err != nil {
		return err
	}

	if !exists {
		err = t.create(ctx, clean, doc)
		if !errors.Is(err, errAlreadyExists) {
			if err == nil {
				logger.Debug().Msg("Created document")
			}
			return err
		}
		logger.Debug().Msg("Document appeared concurrently, updating instead")
	}

	if merge && doc.Len() == 0 {
		logger.Debug().Msg("Nothing to merge")
		return nil
	}
	return t.update(ctx, clean, doc, merge)
}

var errAlreadyExists = errors.New("document already exists")

func (t *RESTTransport) create(ctx context.Context, path string, doc *models.SyncDocument) error {
	parent, collection, id, _ := splitDocumentPath(path)

	parentName := t.endpoint.DocumentsRoot()
	if parent != "" {
		parentName = t.endpoint.DocumentName(parent)
	}
	target := t.endpoint.resourceURL(parentName+"/"+collection) + "?" + url.Values{"documentId": {id}}.Encode()

	err := t.do(ctx, "create", path, http.MethodPost, target, wireDocument{Fields: EncodeFields(doc)}, nil)
	var te *TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusConflict {
		return errAlreadyExists
	}
	return err
}

// update writes with PATCH and retries once with PUT when the store rejects
// the verb itself.
func (t *RESTTransport) update(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error {
	target := t.endpoint.resourceURL(t.endpoint.DocumentName(path))
	if merge {
		query := url.Values{}
		for _, fp := range fieldPaths(doc) {
			query.Add("updateMask.fieldPaths", fp)
		}
		target += "?" + query.Encode()
	}
	body := wireDocument{Fields: EncodeFields(doc)}

	err := t.do(ctx, "update", path, http.MethodPatch, target, body, nil)
	if !retryWithAlternateVerb(err) {
		return err
	}

	t.logger.Warn().
		Err(err).
		Str("action", "update").
		Str("path", path).
		Msg("PATCH failed, retrying with PUT")
	return t.do(ctx, "update", path, http.MethodPut, target, body, nil)
}

// retryWithAlternateVerb is true for rejections that are not about auth,
// reachability or a malformed request.
func retryWithAlternateVerb(err error) bool {
	return errors.Is(err, ErrRemoteRejected) || errors.Is(err, ErrNotFound)
}

func (t *RESTTransport) Delete(ctx context.Context, path string) error {
	const op = "delete"
	clean, err := cleanDocumentPath(op, path)
	if err != nil {
		return err
	}

	err = t.do(ctx, op, clean, http.MethodDelete, t.endpoint.resourceURL(t.endpoint.DocumentName(clean)), nil, nil)
	if errors.Is(err, ErrNotFound) {
		t.logger.Debug().Str("action", op).Str("path", clean).Msg("Document already absent")
		return nil
	}
	return err
}

func (t *RESTTransport) ListCollections(ctx context.Context, parent string) ([]string, error) {
	name := t.endpoint.DocumentsRoot()
	if parent != "" {
		clean, err := cleanDocumentPath("list_collections", parent)
		if err != nil {
			return nil, err
		}
		name = t.endpoint.DocumentName(clean)
	}
	return t.listCollectionIDs(ctx, "list_collections", name, 0)
}

func (t *RESTTransport) listCollectionIDs(ctx context.Context, op, name string, limit int) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		request := map[string]any{}
		if limit > 0 {
			request["pageSize"] = limit
		}
		if pageToken != "" {
			request["pageToken"] = pageToken
		}

		var response struct {
			CollectionIDs []string `json:"collectionIds"`
			NextPageToken string   `json:"nextPageToken"`
		}
		if err := t.do(ctx, op, name, http.MethodPost, t.endpoint.resourceURL(name)+":listCollectionIds", request, &response); err != nil {
			return nil, err
		}
		ids = append(ids, response.CollectionIDs...)

		if response.NextPageToken == "" || (limit > 0 && len(ids) >= limit) {
			return ids, nil
		}
		pageToken = response.NextPageToken
	}
}

func (t *RESTTransport) do(ctx context.Context, op, path, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return newError(KindInvalidArgument, op, path, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return newError(KindInvalidArgument, op, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !t.tokens.Emulator() {
		tok, err := t.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return classify(op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(op, path, resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return classify(op, path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
