package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
)

const (
	defaultSize = 10
	maxSize     = 50
	callTimeout = 3 * time.Second
)

// UserDocument is the indexed public projection of a user.
type UserDocument struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Fullname      string `json:"fullname"`
	AvatarURL     string `json:"avatar"`
	CoverImageURL string `json:"coverImage"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// UserIndex keeps the users index in Elasticsearch.
type UserIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	return &UserIndex{ES: es, Index: index}
}

func (x *UserIndex) enabled() bool {
	return x != nil && x.ES != nil && x.Index != ""
}

// Put indexes u under its id, replacing any previous document.
func (x *UserIndex) Put(ctx context.Context, u *entity.User) error {
	if !x.enabled() {
		return nil
	}
	doc := UserDocument{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Fullname:      u.Fullname,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.Index, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index %s: %s", u.ID, res.Status())
	}
	return nil
}

// Search runs a multi_match over username, fullname and email. size is
// clamped to (0, 50], defaulting to 10.
func (x *UserIndex) Search(ctx context.Context, q string, size int) ([]UserDocument, error) {
	if !x.enabled() {
		return []UserDocument{}, nil
	}
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^3", "fullname^2", "email"},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := x.ES.Search(
		x.ES.Search.WithContext(c),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source UserDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]UserDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
