package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// systemPrompt instructs the model to produce the directive vocabulary the
// decision interpreter understands.
const systemPrompt = "你是一个无人机智能决策助手。请根据以下检测到的地面目标信息，完成以下任务：" +
	"1. 分析每个目标的类型、大致距离（米）、可能的行为（如“静止”、“移动”、“聚集”）。" +
	"2. 判断是否存在异常或高优先级目标（如人群聚集、违停车辆）。" +
	"3. 给出1-2条具体的飞行任务建议（例如：“飞向ID 3的公交车进行车牌识别”，“远离人群区域保持50米以上高度”）。" +
	"4. 用简洁中文输出，不要使用Markdown。"

// ClientConfig configures the chat-completions client.
type ClientConfig struct {
	Endpoint string // chat completions URL
	APIKey   string
	Model    string // e.g. "deepseek-chat"
}

// Client calls a DeepSeek-style (OpenAI-compatible) chat-completions
// endpoint. It implements Analyzer. Any transport failure, non-200 status,
// or malformed body maps to ErrAnalysisUnavailable so the pipeline treats
// the cycle as yielding no new insight.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a client. The per-call deadline comes from the context
// the Worker passes in, so the embedded http.Client carries no timeout.
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg, http: &http.Client{}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze sends the formatted summaries to the model and returns its
// free-form assessment text.
func (c *Client) Analyze(ctx context.Context, summaries []TrackSummary) (string, error) {
	if len(summaries) == 0 {
		return "当前画面中未检测到任何目标。", nil
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "输入数据：\n" + FormatSummaries(summaries)},
		},
		Temperature: 0.3,
		Stream:      false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrAnalysisUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrAnalysisUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrAnalysisUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrAnalysisUnavailable, resp.StatusCode, snippet)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("%w: empty response body", ErrAnalysisUnavailable)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrAnalysisUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrAnalysisUnavailable)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
