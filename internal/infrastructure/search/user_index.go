package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/samber/oops"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// UserIndex keeps a searchable copy of public profile fields.
type UserIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	return &UserIndex{es: es, index: index}
}

type userDoc struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	AvatarPath  string `json:"avatar_path,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Index upserts the document for u.
func (x *UserIndex) Index(ctx context.Context, u *entity.User) error {
	b, err := json.Marshal(userDoc{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		AvatarPath:  u.AvatarPath,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return oops.Code("ES_INDEX_FAILED").With("user_id", u.ID).Wrap(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return oops.Code("ES_INDEX_FAILED").With("user_id", u.ID, "status", res.StatusCode).Errorf("index response: %s", res.Status())
	}
	return nil
}

// Delete removes the document for id. A missing document is not an error.
func (x *UserIndex) Delete(ctx context.Context, id string) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := esapi.DeleteRequest{Index: x.index, DocumentID: id}.Do(c, x.es)
	if err != nil {
		return oops.Code("ES_DELETE_FAILED").With("user_id", id).Wrap(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != 404 {
		return oops.Code("ES_DELETE_FAILED").With("user_id", id, "status", res.StatusCode).Errorf("delete response: %s", res.Status())
	}
	return nil
}

// Search performs a simple multi_match search on email and full name.
func (x *UserIndex) Search(ctx context.Context, q string, size int) ([]map[string]any, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "full_name"},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.es.Search(x.es.Search.WithContext(c), x.es.Search.WithIndex(x.index), x.es.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, oops.Code("ES_SEARCH_FAILED").Wrap(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, oops.Code("ES_SEARCH_FAILED").With("status", res.StatusCode).Wrap(fmt.Errorf("search response: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
