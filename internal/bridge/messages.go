// 包 bridge 实现采集消息契约：
// - Coordinator：持有存储，处理 UI 侧动作（采集/查询/搜索/统计/导出/清空）
// - Agent：页面侧，处理 extractData，打开页面并运行采集器
// - Server：HTTP 传输（POST /api/message），附带只读缓存与指标
package bridge

import (
	"fmt"

	json "github.com/goccy/go-json"

	"douyin-collector/internal/model"
	"douyin-collector/internal/scraper"
)

// 动作名称与前端约定一致。
const (
	ActionStartCollect   = "startCollect"
	ActionGetCreators    = "getCreators"
	ActionSearchCreators = "searchCreators"
	ActionGetStatistics  = "getStatistics"
	ActionExportData     = "exportData"
	ActionClearDatabase  = "clearDatabase"
	ActionExtractData    = "extractData"
)

// ErrUnknownAction 为未知动作的错误文案。
const ErrUnknownAction = "未知的操作"

// Request 为一条消息请求；采集参数为空时使用默认值。
type Request struct {
	Action        string `json:"action"`
	Keyword       string `json:"keyword,omitempty"`
	URL           string `json:"url,omitempty"`
	CollectVideos *bool  `json:"collectVideos,omitempty"`
	ScrollToLoad  *bool  `json:"scrollToLoad,omitempty"`
	MaxScrolls    int    `json:"maxScrolls,omitempty"`
	VideoLimit    int    `json:"videoLimit,omitempty"`
}

// Options 以 def 为底，覆盖请求中显式给出的采集参数。
func (r Request) Options(def scraper.Options) scraper.Options {
	o := def
	if r.CollectVideos != nil {
		o.CollectVideos = *r.CollectVideos
	}
	if r.ScrollToLoad != nil {
		o.ScrollToLoad = *r.ScrollToLoad
	}
	if r.MaxScrolls > 0 {
		o.MaxScrolls = r.MaxScrolls
	}
	if r.VideoLimit > 0 {
		o.VideoLimit = r.VideoLimit
	}
	return o
}

// Response 为统一的应答结构：成功时带各动作的结果字段，失败时只有 error。
type Response struct {
	Success    bool             `json:"success"`
	Error      string           `json:"error,omitempty"`
	CreatorID  int64            `json:"creatorId,omitempty"`
	VideoCount *int             `json:"videoCount,omitempty"`
	Message    string           `json:"message,omitempty"`
	Creators   *[]model.Creator `json:"creators,omitempty"`
	Statistics *model.Stats     `json:"statistics,omitempty"`
	Data       any              `json:"data,omitempty"`
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func failf(format string, a ...any) Response {
	return Response{Success: false, Error: fmt.Sprintf(format, a...)}
}

func creatorsResponse(list []model.Creator) Response {
	if list == nil {
		list = []model.Creator{}
	}
	return Response{Success: true, Creators: &list}
}

// ExtractResult 取出 extractData 应答中的采集结果。
// 进程内应答直接携带 *scraper.Result；经 HTTP 解码的应答为通用 JSON，需要重新解码。
func ExtractResult(resp Response) (*scraper.Result, error) {
	switch v := resp.Data.(type) {
	case nil:
		return nil, nil
	case *scraper.Result:
		return v, nil
	case scraper.Result:
		return &v, nil
	}
	b, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("re-encode extract data: %w", err)
	}
	var out scraper.Result
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode extract data: %w", err)
	}
	return &out, nil
}

// ReadOnly 判断动作是否只读（可缓存）。
func ReadOnly(action string) bool {
	switch action {
	case ActionGetCreators, ActionSearchCreators, ActionGetStatistics, ActionExportData:
		return true
	}
	return false
}

func intPtr(n int) *int { return &n }
