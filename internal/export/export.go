// 包 export 负责导出全量快照：达人字段展开并附带其作品，写为带缩进的 JSON。
// 路径以 .zst 结尾时使用 zstd 压缩。
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"douyin-collector/internal/model"
)

// Source 为可导出的数据源（store.SQLite 满足此接口）。
type Source interface {
	ExportAll(ctx context.Context) ([]model.ExportEntry, error)
	GetStatistics(ctx context.Context) (model.Stats, error)
}

// Snapshot 读取统计与全量数据，组装导出结构。
func Snapshot(ctx context.Context, s Source) (*model.Export, error) {
	entries, err := s.ExportAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export all: %w", err)
	}
	stats, err := s.GetStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &model.Export{Stats: stats, ExportedAt: time.Now().UTC(), Creators: entries}, nil
}

// ToJSON 查询库中全量数据并写入文件。
func ToJSON(ctx context.Context, s Source, path string) error {
	exp, err := Snapshot(ctx, s)
	if err != nil {
		return err
	}
	return Write(path, exp)
}

// ToJSONData 直接将内存中的数据写成快照文件（极简模式，无数据库）。
func ToJSONData(entries []model.ExportEntry, path string) error {
	var st model.Stats
	for _, e := range entries {
		st.CreatorCount++
		st.PostCount += int64(len(e.Posts))
		st.TotalFollowers += e.FollowerCount
	}
	if entries == nil {
		entries = []model.ExportEntry{}
	}
	return Write(path, &model.Export{Stats: st, ExportedAt: time.Now().UTC(), Creators: entries})
}

// Write 将 v 编码为缩进 JSON 写入 path，必要时压缩。
func Write(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	b = append(b, '\n')
	if compressed(path) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		b = enc.EncodeAll(b, nil)
		enc.Close()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read 读取 Write 生成的快照文件。
func Read(path string) (*model.Export, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if compressed(path) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		if b, err = dec.DecodeAll(b, nil); err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
	}
	var out model.Export
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &out, nil
}

func compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}
