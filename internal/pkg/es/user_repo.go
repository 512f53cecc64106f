package es

import (
	"Parley/internal/model"
	"context"
	"errors"
	log "log/slog"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/versiontype"
	"github.com/goccy/go-json"
)

// UserRepo 用户目录索引，实现 service.UserIndex
type UserRepo interface {
	IndexUser(ctx context.Context, user *model.User) error
	SearchUserIDs(ctx context.Context, keyword string, excludeID uint64, limit int) ([]uint64, error)
}

type UserRepoImpl struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewUserRepo(client *elasticsearch.TypedClient, index string) UserRepo {
	return &UserRepoImpl{client: client, index: index}
}

// IndexUser last_seen 只增不减，作为外部版本号丢弃乱序写入
func (s *UserRepoImpl) IndexUser(ctx context.Context, user *model.User) error {
	docID := strconv.FormatUint(user.ID, 10)

	_, err := s.client.Index(s.index).
		Id(docID).
		Document(NewUserES(user)).
		Version(strconv.FormatInt(user.LastSeen, 10)).
		VersionType(versiontype.External).
		Do(ctx)

	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) {
			if e.Status == ConflictCode {
				// 乱序写入属正常情况
				log.DebugContext(ctx, "Version conflict detected, skipping old data",
					"user_id", user.ID,
					"version", user.LastSeen)
				return nil
			}
		}
		return err
	}

	return nil
}

// SearchUserIDs 名称或邮箱包含关键字，忽略大小写
func (s *UserRepoImpl) SearchUserIDs(ctx context.Context, keyword string, excludeID uint64, limit int) ([]uint64, error) {
	resp, err := s.client.Search().
		Index(s.index).
		Query(buildUserQuery(keyword, excludeID)).
		Source_(&types.SourceFilter{Includes: []string{"id"}}).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		if hit.Source_ == nil {
			continue
		}
		var doc UserES
		if err = json.Unmarshal(hit.Source_, &doc); err != nil {
			log.WarnContext(ctx, "unmarshal user doc error", "err", err)
			continue
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func buildUserQuery(keyword string, excludeID uint64) *types.Query {
	pattern := "*" + escapeWildcard(lower(keyword)) + "*"
	namePattern, emailPattern := pattern, pattern

	return &types.Query{
		Bool: &types.BoolQuery{
			Must: []types.Query{
				{
					Bool: &types.BoolQuery{
						Should: []types.Query{
							{Wildcard: map[string]types.WildcardQuery{"name_lc.keyword": {Value: &namePattern}}},
							{Wildcard: map[string]types.WildcardQuery{"email_lc.keyword": {Value: &emailPattern}}},
						},
					},
				},
			},
			MustNot: []types.Query{
				{
					Term: map[string]types.TermQuery{
						"id": {Value: excludeID},
					},
				},
			},
		},
	}
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
