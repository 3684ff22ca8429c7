package config

import (
	"errors"
	"fmt"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 SLACKIFY_SLACK_BOT_TOKEN
const EnvPrefix = "SLACKIFY"

type Config struct {
	Slack  SlackConfig  `mapstructure:"slack"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Render RenderConfig `mapstructure:"render"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"`
	AppToken string `mapstructure:"app_token"`
	Debug    bool   `mapstructure:"debug"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// VisionModel 用于 /analyze 的图片分析
	VisionModel string `mapstructure:"vision_model"`
	BaseURL     string `mapstructure:"base_url"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

type RenderConfig struct {
	ChunkSize      int  `mapstructure:"chunk_size"`
	DiagramPreview bool `mapstructure:"diagram_preview"`
	// DiagramUpload 为 /diagram 渲染图片并上传到频道
	DiagramUpload bool `mapstructure:"diagram_upload"`
}

type ServerConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

var defaults = map[string]any{
	"slack.bot_token":        "",
	"slack.app_token":        "",
	"slack.debug":            false,
	"openai.api_key":         "",
	"openai.model":           "gpt-4o-mini",
	"openai.vision_model":    "gpt-4o-mini",
	"openai.base_url":        "",
	"openai.max_retries":     2,
	"render.chunk_size":      2900,
	"render.diagram_preview": false,
	"render.diagram_upload":  true,
	"server.health_addr":     ":8080",
	"log.level":              "info",
	"log.format":             "json",
}

// New 创建带默认值和环境变量绑定的 viper 实例
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// 兼容 OpenAI SDK 的标准变量名
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	return v
}

// Load 读取配置：默认值 < 配置文件 < 环境变量。configFile 为空时只使用默认值和环境变量。
func Load(v *viper.Viper, configFile string) (Config, error) {
	if v == nil {
		v = New()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate 检查运行机器人所需的配置项
func (c Config) Validate() error {
	var problems []error
	if !strings.HasPrefix(c.Slack.BotToken, "xoxb-") {
		problems = append(problems, errors.New("slack.bot_token must be a bot token (xoxb-…)"))
	}
	if !strings.HasPrefix(c.Slack.AppToken, "xapp-") {
		problems = append(problems, errors.New("slack.app_token must be an app-level token (xapp-…)"))
	}
	if c.OpenAI.APIKey == "" {
		problems = append(problems, errors.New("openai.api_key is required"))
	}
	if c.Render.ChunkSize <= 0 {
		problems = append(problems, fmt.Errorf("render.chunk_size must be positive, got %d", c.Render.ChunkSize))
	}
	if len(problems) == 0 {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("invalid configuration").
		WithCause(errors.Join(problems...))
}
