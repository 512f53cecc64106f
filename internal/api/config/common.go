package config

// Config 配置主体
type Config struct {
	Server        ServerConfig     `mapstructure:"server"`
	DB            DBConfig         `mapstructure:"database"`
	Redis         RedisConfig      `mapstructure:"redis"`
	Mongo         MongoConfig      `mapstructure:"mongo"`
	MinIO         MinIOConfig      `mapstructure:"minio"`
	Elastic       ElasticConfig    `mapstructure:"elastic"`
	Logstash      LogstashConfig   `mapstructure:"logstash"`
	Auth          AuthConfig       `mapstructure:"auth"`
	Webhook       WebhookConfig    `mapstructure:"webhook"`
	Presence      PresenceConfig   `mapstructure:"presence"`
	Kafka         KafkaConfig      `mapstructure:"kafka"`
	KafkaIdentity KafkaTopicConfig `mapstructure:"kafka_identity"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// AllowedOrigins 为空时回显任意 Origin
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	MainBucket       string `mapstructure:"main_bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
	ExternalUseSSL   bool   `mapstructure:"external_use_ssl"`
}

// ElasticConfig Elastic配置，Address 为空时用户搜索退回数据库
type ElasticConfig struct {
	Address  string         `mapstructure:"address"`
	Username string         `mapstructure:"username"`
	Password string         `mapstructure:"password"`
	Indices  ElasticIndices `mapstructure:"indices"`
}

// ElasticIndices Elastic索引
type ElasticIndices struct {
	UserIndex string `mapstructure:"user_index"`
}

// LogstashConfig 远程日志
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// AuthConfig 会话令牌校验，sub 即身份提供方的 externalId
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// WebhookConfig 身份提供方 webhook
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// PresenceConfig 在线状态相关参数，单位毫秒
type PresenceConfig struct {
	HeartbeatInterval int64  `mapstructure:"heartbeat_interval"`
	OnlineThreshold   int64  `mapstructure:"online_threshold"`
	TypingThreshold   int64  `mapstructure:"typing_threshold"`
	// SweepSpec 可选的库内标记收敛任务，为空不启用
	SweepSpec         string `mapstructure:"sweep_spec"`
}

type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

type KafkaTopicConfig struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// KafkaEnabled brokers 为空时身份事件直接落库
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.KafkaIdentity.Topic != ""
}
