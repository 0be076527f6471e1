//go:build !firestore_rest

package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	firestoreapi "google.golang.org/api/firestore/v1"
	"google.golang.org/api/option"

	"firesync/internal/auth"
	"firesync/internal/models"
	"firesync/pkg/log"
)

const nativeAvailable = true

// NativeTransport uses the generated document API client for writes and
// listing. Reads go through the same authorized HTTP client but decode the
// raw body, because the generated Value drops false, 0 and "" scalars.
type NativeTransport struct {
	endpoint   Endpoint
	documents  *firestoreapi.ProjectsDatabasesDocumentsService
	httpClient *http.Client
	logger     zerolog.Logger
}

func newNativeTransport(ctx context.Context, endpoint Endpoint, tokens auth.Source, httpClient *http.Client) (Transport, error) {
	if tokens == nil {
		tokens = auth.EmulatorSource{}
	}

	client := &http.Client{Timeout: DefaultTimeout}
	base := http.DefaultTransport
	if httpClient != nil {
		client.Timeout = httpClient.Timeout
		if httpClient.Transport != nil {
			base = httpClient.Transport
		}
	}
	client.Transport = base
	if !tokens.Emulator() {
		client.Transport = &oauth2.Transport{Source: auth.NewTokenSource(ctx, tokens), Base: base}
	}

	svc, err := firestoreapi.NewService(ctx,
		option.WithHTTPClient(client),
		option.WithEndpoint(endpoint.base()),
	)
	if err != nil {
		return nil, fmt.Errorf("create native firestore client: %w", err)
	}

	return &NativeTransport{
		endpoint:   endpoint,
		documents:  svc.Projects.Databases.Documents,
		httpClient: client,
		logger: log.Logger.With().
			Str("component", "firestore_native").
			Str("project", endpoint.ProjectID).
			Logger(),
	}, nil
}

func (t *NativeTransport) Name() string { return "native" }

func (t *NativeTransport) Probe(ctx context.Context) (bool, error) {
	_, err := t.documents.
		ListCollectionIds(t.endpoint.DocumentsRoot(), &firestoreapi.ListCollectionIdsRequest{PageSize: 1}).
		Context(ctx).
		Do()
	if err != nil {
		return false, classify("probe", "", err)
	}
	return true, nil
}

func (t *NativeTransport) Get(ctx context.Context, path string) (*models.SyncDocument, bool, error) {
	const op = "get"
	clean, err := cleanDocumentPath(op, path)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint.resourceURL(t.endpoint.DocumentName(clean)), nil)
	if err != nil {
		return nil, false, newError(KindInvalidArgument, op, clean, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, false, classify(op, clean, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err := statusError(op, clean, resp.StatusCode, raw); !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
		return nil, false, nil
	}

	var doc wireDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, false, newError(KindRemoteRejected, op, clean, fmt.Errorf("decode response: %w", err))
	}
	return DecodeFields(doc.Fields), true, nil
}

// Upsert relies on PATCH creating absent documents. With merge the update
// mask lists the top-level fields of doc.
func (t *NativeTransport) Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error {
	const op = "upsert"
	clean, err := cleanDocumentPath(op, path)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = models.NewSyncDocument()
	}

	fields, err := toNativeFields(doc)
	if err != nil {
		return newError(KindInvalidArgument, op, clean, err)
	}

	call := t.documents.Patch(t.endpoint.DocumentName(clean), &firestoreapi.Document{Fields: fields})
	if merge {
		if doc.Len() == 0 {
			_, found, err := t.Get(ctx, clean)
			if err != nil || found {
				return err
			}
		} else {
			call = call.UpdateMaskFieldPaths(fieldPaths(doc)...)
		}
	}

	if _, err := call.Context(ctx).Do(); err != nil {
		return classify(op, clean, err)
	}
	t.logger.Debug().Str("action", op).Str("path", clean).Bool("merge", merge).Msg("Wrote document")
	return nil
}

func (t *NativeTransport) Delete(ctx context.Context, path string) error {
	const op = "delete"
	clean, err := cleanDocumentPath(op, path)
	if err != nil {
		return err
	}

	_, err = t.documents.Delete(t.endpoint.DocumentName(clean)).Context(ctx).Do()
	if err = classify(op, clean, err); errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (t *NativeTransport) ListCollections(ctx context.Context, parent string) ([]string, error) {
	const op = "list_collections"
	name := t.endpoint.DocumentsRoot()
	if parent != "" {
		clean, err := cleanDocumentPath(op, parent)
		if err != nil {
			return nil, err
		}
		name = t.endpoint.DocumentName(clean)
	}

	var ids []string
	request := &firestoreapi.ListCollectionIdsRequest{}
	for {
		resp, err := t.documents.ListCollectionIds(name, request).Context(ctx).Do()
		if err != nil {
			return nil, classify(op, parent, err)
		}
		ids = append(ids, resp.CollectionIds...)
		if resp.NextPageToken == "" {
			return ids, nil
		}
		request = &firestoreapi.ListCollectionIdsRequest{PageToken: resp.NextPageToken}
	}
}

// toNativeFields converts through the wire JSON form, then marks scalar
// members so zero values (false, 0, "") are still sent.
func toNativeFields(doc *models.SyncDocument) (map[string]firestoreapi.Value, error) {
	raw, err := json.Marshal(EncodeFields(doc))
	if err != nil {
		return nil, err
	}
	var fields map[string]firestoreapi.Value
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	doc.Range(func(k string, v models.Value) bool {
		nv := fields[k]
		forceSendScalars(&nv, v)
		fields[k] = nv
		return true
	})
	return fields, nil
}

func forceSendScalars(nv *firestoreapi.Value, v models.Value) {
	switch v.Kind() {
	case models.KindBool:
		nv.ForceSendFields = append(nv.ForceSendFields, "BooleanValue")
	case models.KindInt:
		nv.ForceSendFields = append(nv.ForceSendFields, "IntegerValue")
	case models.KindFloat:
		nv.ForceSendFields = append(nv.ForceSendFields, "DoubleValue")
	case models.KindString:
		nv.ForceSendFields = append(nv.ForceSendFields, "StringValue")
	case models.KindArray:
		items, _ := v.AsArray()
		if nv.ArrayValue == nil {
			return
		}
		for i, item := range items {
			if i < len(nv.ArrayValue.Values) && nv.ArrayValue.Values[i] != nil {
				forceSendScalars(nv.ArrayValue.Values[i], item)
			}
		}
	case models.KindMap:
		m, _ := v.AsMap()
		if nv.MapValue == nil || nv.MapValue.Fields == nil {
			return
		}
		m.Range(func(k string, item models.Value) bool {
			fv := nv.MapValue.Fields[k]
			forceSendScalars(&fv, item)
			nv.MapValue.Fields[k] = fv
			return true
		})
	}
}
