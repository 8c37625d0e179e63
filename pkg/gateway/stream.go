package gateway

import (
	"context"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// SSE事件帧格式
const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// decodeStream 增量解码流式响应。
// 跨块缓冲末尾的不完整行，只处理 data: 前缀的事件行，
// 遇到 [DONE] 哨兵结束。每个非空增量恰好回调一次 onChunk，
// 畸形事件跳过（至多记一次日志），不会中断流。
// 返回累积的完整文本。
func (c *Client) decodeStream(ctx context.Context, body io.Reader, onChunk func(string)) (string, error) {
	var full strings.Builder
	var pending string
	malformedLogged := false

	// consume 处理一个完整的事件行，遇到 [DONE] 哨兵时返回true
	consume := func(line string) bool {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			return false
		}

		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneMarker {
			return true
		}

		if !gjson.Valid(payload) {
			if !malformedLogged {
				c.logger.Debug("skipping malformed stream event", zap.String("payload", payload))
				malformedLogged = true
			}
			return false
		}

		delta := gjson.Get(payload, "choices.0.delta.content").String()
		if delta == "" {
			return false
		}

		full.WriteString(delta)
		onChunk(delta)
		return false
	}

	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}

		n, err := body.Read(buf)
		if n > 0 {
			pending += string(buf[:n])

			lines := strings.Split(pending, "\n")
			// 最后一段可能是不完整的行，留到下一块
			pending = lines[len(lines)-1]

			for _, line := range lines[:len(lines)-1] {
				if consume(line) {
					return full.String(), nil
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				// 流在哨兵之前结束：缓冲里残留的末行也要处理，
				// 再返回已累积的内容
				consume(pending)
				return full.String(), nil
			}
			return full.String(), err
		}
	}
}
