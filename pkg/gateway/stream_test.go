package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStreamServer 创建SSE流式模拟服务端。
// raw 里的每个元素作为一次写入+Flush，用来制造跨块的不完整行。
func newStreamServer(t *testing.T, raw []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, part := range raw {
			fmt.Fprint(w, part)
			flusher.Flush()
		}
	}))
}

func deltaEvent(delta string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q},\"index\":0}]}\n\n", delta)
}

func TestClient_StreamingCall(t *testing.T) {
	server := newStreamServer(t, []string{
		deltaEvent("你好"),
		deltaEvent("，"),
		deltaEvent("世界"),
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newTestClient(server.URL, 2)

	var chunks []string
	text, err := client.Call(context.Background(), "translate", func(delta string) {
		chunks = append(chunks, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, "你好，世界", text)
	// 回调拿到的是增量，不是累积的整体
	assert.Equal(t, []string{"你好", "，", "世界"}, chunks)
	assert.Equal(t, 0, client.Semaphore().Active())
}

// 行可以在任意字节处被切断，解码器必须跨块缓冲
func TestClient_StreamingPartialLines(t *testing.T) {
	event := deltaEvent("hello world")
	server := newStreamServer(t, []string{
		event[:7],
		event[7:19],
		event[19:],
		deltaEvent("!")[:3],
		deltaEvent("!")[3:],
		"data: [DO",
		"NE]\n\n",
	})
	defer server.Close()

	client := newTestClient(server.URL, 2)

	var chunks []string
	text, err := client.Call(context.Background(), "translate", func(delta string) {
		chunks = append(chunks, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world!", text)
	assert.Equal(t, []string{"hello world", "!"}, chunks)
}

// 空增量跳过、非data行忽略、畸形事件不会中断流
func TestClient_StreamingSkipsNoise(t *testing.T) {
	server := newStreamServer(t, []string{
		": keep-alive comment\n",
		"event: message\n",
		deltaEvent(""),
		"data: {not valid json}\n\n",
		deltaEvent("ok"),
		"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"},\"index\":0}]}\n\n",
		"data: [DONE]\n\n",
	})
	defer server.Close()

	client := newTestClient(server.URL, 2)

	var chunks []string
	text, err := client.Call(context.Background(), "translate", func(delta string) {
		chunks = append(chunks, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, []string{"ok"}, chunks)
}

// 没有[DONE]就关闭的流返回已累积的内容
func TestClient_StreamingEndsWithoutSentinel(t *testing.T) {
	server := newStreamServer(t, []string{
		deltaEvent("partial"),
	})
	defer server.Close()

	client := newTestClient(server.URL, 2)
	text, err := client.Call(context.Background(), "translate", func(string) {})
	require.NoError(t, err)
	assert.Equal(t, "partial", text)
}

// EOF时残留在缓冲里的完整但没有换行的事件行不能被丢掉
func TestClient_StreamingTrailingLineWithoutNewline(t *testing.T) {
	server := newStreamServer(t, []string{
		deltaEvent("partial"),
		strings.TrimSuffix(deltaEvent("!"), "\n\n"),
	})
	defer server.Close()

	client := newTestClient(server.URL, 2)

	var chunks []string
	text, err := client.Call(context.Background(), "translate", func(delta string) {
		chunks = append(chunks, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, "partial!", text)
	assert.Equal(t, []string{"partial", "!"}, chunks)
}

func TestClient_StreamingCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, deltaEvent("first"))
		w.(http.Flusher).Flush()
		close(started)
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := client.Call(ctx, "translate", func(string) {})
		errc <- err
	}()

	<-started
	cancel()

	assert.ErrorIs(t, <-errc, ErrCancelled)
	waitFor(t, func() bool { return client.Semaphore().Active() == 0 }, "slot released")
}
