package mermaid

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	// 注册解码器，IsImage 通过 image.DecodeConfig 校验
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	inkBaseURL  = "https://mermaid.ink/img/"
	liveBaseURL = "https://mermaid.live/edit/#"

	// maxImageBytes caps downloads from the render service.
	maxImageBytes = 10 << 20
)

// Config Mermaid 渲染配置
type Config struct {
	Theme string `json:"theme"`

	// 以下字段只影响 mermaid.ink 的查询参数，不参与 pako 编码
	ImageType string `json:"-"`
	Width     int    `json:"-"`
	Scale     int    `json:"-"`
}

// DefaultConfig 返回默认 Mermaid 配置
//
// Slack 的 image block 不支持 webp，因此默认请求 png。
func DefaultConfig() *Config {
	return &Config{
		Theme:     "default",
		ImageType: "png",
		Width:     500,
		Scale:     2,
	}
}

// compressToDeflate 使用 DEFLATE 算法压缩数据
func compressToDeflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// safeBase64Encode URL-safe base64 编码
func safeBase64Encode(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}

// GeneratePako 生成 Mermaid 图表的 pako 编码
func GeneratePako(graphMarkdown string, config *Config) (string, error) {
	if config == nil {
		config = DefaultConfig()
	}

	graphData := map[string]interface{}{
		"code":    graphMarkdown,
		"mermaid": config,
	}
	jsonBytes, err := json.Marshal(graphData)
	if err != nil {
		return "", err
	}

	compressedData, err := compressToDeflate(jsonBytes)
	if err != nil {
		return "", err
	}
	return "pako:" + safeBase64Encode(compressedData), nil
}

// GetMermaidLiveURL 获取 Mermaid Live 编辑器 URL
func GetMermaidLiveURL(graphMarkdown string) (string, error) {
	pako, err := GeneratePako(graphMarkdown, nil)
	if err != nil {
		return "", err
	}
	return liveBaseURL + pako, nil
}

// GetMermaidInkURL 获取 Mermaid Ink 图片 URL
func GetMermaidInkURL(graphMarkdown string, config *Config) (string, error) {
	if config == nil {
		config = DefaultConfig()
	}
	pako, err := GeneratePako(graphMarkdown, config)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("theme", config.Theme)
	if config.Width > 0 {
		query.Set("width", strconv.Itoa(config.Width))
	}
	if config.Scale > 0 {
		query.Set("scale", strconv.Itoa(config.Scale))
	}
	if config.ImageType != "" {
		query.Set("type", config.ImageType)
	}
	return inkBaseURL + pako + "?" + query.Encode(), nil
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, imageURL string, client *http.Client) (*bytes.Buffer, error) {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "slackify-go")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return &buf, nil
}

// IsImage 检查数据是否为可解码的图片（png / jpeg / gif / webp）
func IsImage(data *bytes.Buffer) bool {
	if data == nil || data.Len() == 0 {
		return false
	}
	_, _, err := image.DecodeConfig(bytes.NewReader(data.Bytes()))
	return err == nil
}

// ImageFormat returns the registered format name of data, or "" when it
// cannot be decoded.
func ImageFormat(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return format
}

// RenderMermaid 渲染 Mermaid 图表
// 返回图片数据和编辑 URL
func RenderMermaid(ctx context.Context, diagram string, config *Config, client *http.Client) (*bytes.Buffer, string, error) {
	imgURL, err := GetMermaidInkURL(diagram, config)
	if err != nil {
		return nil, "", err
	}
	return renderFrom(ctx, imgURL, diagram, client)
}

func renderFrom(ctx context.Context, imgURL, diagram string, client *http.Client) (*bytes.Buffer, string, error) {
	caption, err := GetMermaidLiveURL(diagram)
	if err != nil {
		return nil, "", err
	}

	imgData, err := DownloadImage(ctx, imgURL, client)
	if err != nil {
		return nil, "", err
	}
	if !IsImage(imgData) {
		return nil, "", fmt.Errorf("downloaded data is not a valid image")
	}
	return imgData, caption, nil
}
