package es

import (
	"Parley/internal/api/config"
	"Parley/internal/pkg/logger"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

var Client *elasticsearch.TypedClient

var (
	UserIndex string
)

const (
	ConflictCode = 409

	initTimeout = 10 * time.Second
)

// Enabled 未配置地址时用户搜索退回数据库
func Enabled() bool {
	return config.Cfg.Elastic.Address != ""
}

// InitClient 初始化 Elasticsearch 客户端并确保用户索引存在
func InitClient() error {
	elasticCfg := config.Cfg.Elastic

	UserIndex = elasticCfg.Indices.UserIndex

	cfg := elasticsearch.Config{
		Addresses: []string{elasticCfg.Address},
		Username:  elasticCfg.Username,
		Password:  elasticCfg.Password,
		Transport: &logger.ESTransport{
			Transport: http.DefaultTransport,
		},
	}

	var err error
	Client, err = elasticsearch.NewTypedClient(cfg)
	if err != nil {
		log.Error("Cannot Connect to Elasticsearch", "err", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	info, err := Client.Info().Do(ctx)
	if err != nil {
		log.Error("Cannot Connect to Elasticsearch", "err", err)
		return err
	}

	if err = EnsureUserIndex(ctx, Client, UserIndex); err != nil {
		return fmt.Errorf("ensure user index: %w", err)
	}

	log.Info("Connected to Elasticsearch", "version", info.Version.Int, "user_index", UserIndex)
	return nil
}

// EnsureUserIndex 索引不存在时按用户目录映射创建
func EnsureUserIndex(ctx context.Context, client *elasticsearch.TypedClient, index string) error {
	exists, err := client.Indices.Exists(index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = client.Indices.Create(index).Mappings(userIndexMapping()).Do(ctx)
	if err != nil {
		// 多实例同时启动
		var e *types.ElasticsearchError
		if errors.As(err, &e) && e.ErrorCause.Type == "resource_already_exists_exception" {
			return nil
		}
		return err
	}
	log.Info("user index created", "index", index)
	return nil
}

// userIndexMapping *_lc 带 keyword 子字段供通配查询
func userIndexMapping() *types.TypeMapping {
	lowerCased := func() types.Property {
		p := types.NewTextProperty()
		p.Fields = map[string]types.Property{"keyword": types.NewKeywordProperty()}
		return p
	}
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"id":          types.NewUnsignedLongNumberProperty(),
			"external_id": types.NewKeywordProperty(),
			"name":        types.NewTextProperty(),
			"email":       types.NewKeywordProperty(),
			"name_lc":     lowerCased(),
			"email_lc":    lowerCased(),
			"image_url":   types.NewKeywordProperty(),
		},
	}
}
