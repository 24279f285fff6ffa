package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tenantIDKey       = "tenant_id"
	sourceKey         = "source"
	contentPreviewKey = "content_preview"
)

// QdrantBackend stores all tenants' vectors in one collection, filtered by
// the tenant_id payload field. The collection plays the role of the shared
// index; there is no separate bucket concept, so EnsureBucket only checks
// connectivity.
type QdrantBackend struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

func NewQdrantBackend(host string, port int, collection string, dimension int) (*QdrantBackend, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &QdrantBackend{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}, nil
}

func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

func (b *QdrantBackend) EnsureBucket(ctx context.Context) error {
	if _, err := b.client.CollectionExists(ctx, b.collection); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

func (b *QdrantBackend) CreateIndex(ctx context.Context) error {
	err := b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(b.dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return b.mapError(err)
	}
	return nil
}

func (b *QdrantBackend) Put(ctx context.Context, records []Record) error {
	pts := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.Key),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				tenantIDKey:       r.Meta.TenantID,
				sourceKey:         r.Meta.Source,
				contentPreviewKey: r.Meta.ContentPreview,
			}),
		}
	}

	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collection,
		Points:         pts,
	})
	if err != nil {
		return b.mapError(err)
	}
	return nil
}

func (b *QdrantBackend) Query(ctx context.Context, q Query) (*Page, error) {
	if q.Vector == nil {
		return b.scroll(ctx, q)
	}

	limit := uint64(q.TopK)
	resp, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collection,
		Limit:          &limit,
		Filter:         tenantFilter(q.TenantID),
		Query:          qdrant.NewQuery(q.Vector...),
		WithPayload:    qdrant.NewWithPayload(q.WithMetadata),
	})
	if err != nil {
		return nil, b.mapError(err)
	}

	page := &Page{}
	for _, pt := range resp {
		page.Matches = append(page.Matches, Match{
			Key: pointIDString(pt.Id),
			// Cosine scores are similarities (higher = closer);
			// callers expect a distance.
			Distance: 1 - pt.Score,
			Meta:     payloadMetadata(pt.Payload),
		})
	}
	return page, nil
}

// scroll serves metadata-only scans. Qdrant pages by point id, so the
// continuation token is the last key of the previous page; the first point
// of a follow-up page is dropped when the server treats the offset as
// inclusive.
func (b *QdrantBackend) scroll(ctx context.Context, q Query) (*Page, error) {
	limit := uint32(q.TopK)
	req := &qdrant.ScrollPoints{
		CollectionName: b.collection,
		Filter:         tenantFilter(q.TenantID),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(q.WithMetadata),
	}
	if q.NextToken != "" {
		req.Offset = qdrant.NewIDUUID(q.NextToken)
	}

	pts, err := b.client.Scroll(ctx, req)
	if err != nil {
		return nil, b.mapError(err)
	}

	page := &Page{}
	for _, pt := range pts {
		key := pointIDString(pt.Id)
		if key == q.NextToken {
			continue
		}
		page.Matches = append(page.Matches, Match{
			Key:  key,
			Meta: payloadMetadata(pt.Payload),
		})
	}
	if len(pts) == int(limit) && len(page.Matches) > 0 {
		page.NextToken = page.Matches[len(page.Matches)-1].Key
	}
	return page, nil
}

func (b *QdrantBackend) Delete(ctx context.Context, keys []string) error {
	ids := make([]*qdrant.PointId, len(keys))
	for i, k := range keys {
		ids[i] = qdrant.NewIDUUID(k)
	}

	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return b.mapError(err)
	}
	return nil
}

func tenantFilter(tenantID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(tenantIDKey, tenantID),
		},
	}
}

func payloadMetadata(payload map[string]*qdrant.Value) Metadata {
	m := Metadata{}
	if v, ok := payload[tenantIDKey]; ok {
		m.TenantID = v.GetStringValue()
	}
	if v, ok := payload[sourceKey]; ok {
		m.Source = v.GetStringValue()
	}
	if v, ok := payload[contentPreviewKey]; ok {
		m.ContentPreview = v.GetStringValue()
	}
	return m
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch x := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return x.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", x.Num)
	}
	return ""
}

// mapError folds qdrant/grpc failures into the package error taxonomy.
func (b *QdrantBackend) mapError(err error) error {
	msg := strings.ToLower(err.Error())
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrIndexNotReady, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case codes.InvalidArgument:
		if strings.Contains(msg, "exist") {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("%w: %v", ErrIndexNotReady, err)
	}
	// Older servers report a missing collection as an internal error.
	if strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %v", ErrIndexNotReady, err)
	}
	if strings.Contains(msg, "already exists") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
