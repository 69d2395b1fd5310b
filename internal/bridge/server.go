package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"douyin-collector/internal/logx"
)

const maxRequestBody = 1 << 20

// Server 为消息的 HTTP 传输：
// - POST /api/message：请求体为 Request，应答为 Response
// - GET /health
// - GET /metrics（启用指标时）
// extractData 在配置了 Agent 时转交页面侧处理，其余动作交给协调器。
type Server struct {
	coord   *Coordinator
	agent   PageChannel
	cache   ReadCache
	metrics Metrics
	mux     *http.ServeMux

	// gen 在每次写动作后递增；读请求只在期间没有写入时才回填缓存
	genMu sync.Mutex
	gen   uint64
}

// NewServer 创建 HTTP 服务；cache/metrics 可为空。
func NewServer(coord *Coordinator, agent PageChannel, cache ReadCache, m Metrics) *Server {
	if cache == nil {
		cache = noopCache{}
	}
	if m == nil {
		m = noopMetrics{}
	}
	s := &Server{coord: coord, agent: agent, cache: cache, metrics: m, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/message", s.handleMessage)
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("/metrics", m.Handler())
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe 启动服务，ctx 结束时优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logx.Infof("消息服务已启动: http://%s/api/message", addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logx.Infof("消息服务正在关闭")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, failf("method not allowed"))
		return
	}
	var req Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failf("invalid request: %v", err))
		return
	}

	if req.Action == ActionExtractData {
		if s.agent == nil {
			writeJSON(w, http.StatusOK, Response{Success: false, Error: ErrUnknownAction})
			return
		}
		resp, err := s.agent.Send(r.Context(), req)
		if err != nil {
			resp = failf("%v", err)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	key := req.Action + "\x00" + req.Keyword
	readOnly := ReadOnly(req.Action)
	if readOnly {
		if b, ok := s.cache.Get(key); ok {
			s.metrics.IncCacheHit()
			writeRaw(w, http.StatusOK, b)
			return
		}
		s.metrics.IncCacheMiss()
	}

	gen := s.generation()
	resp := s.coord.Handle(r.Context(), req)
	if !readOnly {
		s.invalidate()
	}
	b, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, failf("encode response: %v", err))
		return
	}
	if readOnly && resp.Success {
		s.fill(gen, key, b)
	}
	writeRaw(w, http.StatusOK, b)
}

func (s *Server) generation() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gen
}

// invalidate 写动作使全部只读缓存失效。
func (s *Server) invalidate() {
	s.genMu.Lock()
	s.gen++
	s.cache.Clear()
	s.genMu.Unlock()
}

// fill 仅当读取开始后没有发生写动作时回填缓存，避免写入前读到的旧结果被缓存。
func (s *Server) fill(gen uint64, key string, b []byte) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gen != gen {
		return
	}
	s.cache.Set(key, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// HTTPChannel 通过 HTTP 将请求投递到远端 Server（例如运行浏览器的另一台机器）。
type HTTPChannel struct {
	BaseURL string
	Client  *http.Client
}

func (h *HTTPChannel) Send(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/api/message", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	cl := h.Client
	if cl == nil {
		cl = http.DefaultClient
	}
	hresp, err := cl.Do(hreq)
	if err != nil {
		return Response{}, fmt.Errorf("post message: %w", err)
	}
	defer hresp.Body.Close()
	if hresp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("post message: http status: %s", hresp.Status)
	}
	var resp Response
	if err := json.NewDecoder(io.LimitReader(hresp.Body, 64<<20)).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
