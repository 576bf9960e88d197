package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PurchaseResult string `mapstructure:"purchase_result"`
	TradeResult    string `mapstructure:"trade_result"`
}

// BusinessConfig 业务策略参数
// 代币经济学常量（奖励比例、手续费率）刻意做成可配置，默认值与产品约定一致
type BusinessConfig struct {
	RewardRatio          float64 `mapstructure:"reward_ratio"`           // 每次购买奖励占总供应量比例，默认 0.01
	MinRewardTokens      int64   `mapstructure:"min_reward_tokens"`      // 单次奖励下限，默认 1
	TradeFeeRatio        float64 `mapstructure:"trade_fee_ratio"`        // 二级市场手续费率，默认 0.005
	OrderListLimit       int     `mapstructure:"order_list_limit"`       // 挂单查询结果上限，默认 100
	LockRetryIntervalMs  int     `mapstructure:"lock_retry_interval_ms"` // 获取锁重试间隔
	LockMaxRetries       int     `mapstructure:"lock_max_retries"`       // 获取锁最大重试次数
	TxMaxRetries         int     `mapstructure:"tx_max_retries"`         // 事务冲突最大重试次数
	AuditIntervalSeconds int     `mapstructure:"audit_interval_seconds"` // 账本对账周期
	MaxRetryCount        int     `mapstructure:"max_retry_count"`        // 发件箱消息最大重试次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
