package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/storage"
)

// newQdrantBackedStorage 构造只含Qdrant组件、指向mock服务器的存储管理器
func newQdrantBackedStorage(t *testing.T, endpoint string) *storage.Storage {
	t.Helper()
	q, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:   endpoint,
		Collection: "resumes",
	})
	require.NoError(t, err)
	return &storage.Storage{Qdrant: q}
}

// TestHandleHeartbeatNoBackends 验证无后端配置时心跳仍返回ok
func TestHandleHeartbeatNoBackends(t *testing.T) {
	h := NewResumeHandler(&config.Config{}, nil, nil)

	resp := h.HandleHeartbeat(context.Background())
	require.NotNil(t, resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Components)
}

// TestHandleHeartbeatReportsIndexSize 验证心跳报告向量索引的点数量
func TestHandleHeartbeatReportsIndexSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/resumes/points/count" {
			w.Write([]byte(`{"result": {"count": 7}, "status": "ok", "time": 0.001}`))
			return
		}
		t.Errorf("意外的请求: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h := NewResumeHandler(&config.Config{}, nil, newQdrantBackedStorage(t, server.URL))

	resp := h.HandleHeartbeat(context.Background())
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Components["qdrant"])
	assert.Equal(t, int64(7), resp.IndexedPoints)
}

// TestHandleHeartbeatDegradedOnBackendError 验证后端异常时状态降级但不报错
func TestHandleHeartbeatDegradedOnBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	h := NewResumeHandler(&config.Config{}, nil, newQdrantBackedStorage(t, server.URL))

	resp := h.HandleHeartbeat(context.Background())
	assert.Equal(t, "degraded", resp.Status)
	assert.NotEqual(t, "ok", resp.Components["qdrant"])
}

// TestHandleGetResumeFileURLNoObjectStore 验证未配置对象存储时直接报错
func TestHandleGetResumeFileURLNoObjectStore(t *testing.T) {
	h := NewResumeHandler(&config.Config{}, nil, &storage.Storage{})

	_, err := h.HandleGetResumeFileURL(context.Background(), "resume-1")
	assert.ErrorIs(t, err, processor.ErrStoreFileFailed)
}
