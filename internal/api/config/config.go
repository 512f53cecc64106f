package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg，环境变量 PARLEY_* 可覆盖同名配置
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	viper.SetEnvPrefix("parley")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("presence.heartbeat_interval", 20000)
	viper.SetDefault("presence.online_threshold", 30000)
	viper.SetDefault("presence.typing_threshold", 2000)
	// 默认不启用巡检，读路径靠存活判定即可
	viper.SetDefault("presence.sweep_spec", "")
	viper.SetDefault("elastic.indices.user_index", "parley_users")
	viper.SetDefault("kafka_identity.topic", "identity-user")
	viper.SetDefault("kafka_identity.group_id", "parley-identity")
}
