// 包 store 提供达人/作品的存储实现（SQLite），包含建表/写入/查询/导出/清理等操作。
// 每次写入都是一条原生事务语句，提交即持久化，无需整库序列化回写。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"douyin-collector/internal/model"
)

// SchemaVersion 为当前表结构版本，写入 meta 表；暂无迁移逻辑。
const SchemaVersion = 1

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
// 首次访问时惰性建表，之后的 Init 调用为空操作。
type SQLite struct {
	dsn string

	mu      sync.Mutex
	db      *sql.DB
	ready   bool
	onWrite func(op string, d time.Duration)
}

// Open 只记录 DSN，不触碰磁盘；首次操作时自动初始化。
func Open(dsn string) *SQLite {
	return &SQLite{dsn: dsn}
}

// OpenSQLite 打开 SQLite 数据库并立即执行建表。
func OpenSQLite(path string) (*SQLite, error) {
	s := Open(path)
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// OnWrite 注册写操作耗时回调（用于指标）。
func (s *SQLite) OnWrite(fn func(op string, d time.Duration)) {
	s.mu.Lock()
	s.onWrite = fn
	s.mu.Unlock()
}

// Init 幂等初始化：打开数据库并建表；失败后下次调用会重试。
func (s *SQLite) Init(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *SQLite) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return s.db, nil
	}
	// 说明：modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return nil, storageErr("open sqlite "+s.dsn, err)
	}
	db.SetMaxOpenConns(1)
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}
	s.db = db
	s.ready = true
	return db, nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.db.Close()
}

// migrate 执行建表语句，保持幂等。
func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS creators (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id TEXT NOT NULL UNIQUE,
            username TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            follower_count INTEGER NOT NULL DEFAULT 0,
            following_count INTEGER NOT NULL DEFAULT 0,
            like_count INTEGER NOT NULL DEFAULT 0,
            video_count INTEGER NOT NULL DEFAULT 0,
            collected_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS videos (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            creator_id INTEGER REFERENCES creators(id),
            video_id TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL DEFAULT '',
            cover_url TEXT NOT NULL DEFAULT '',
            play_count INTEGER NOT NULL DEFAULT 0,
            like_count INTEGER NOT NULL DEFAULT 0,
            comment_count INTEGER NOT NULL DEFAULT 0,
            share_count INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMP,
            collected_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_videos_creator ON videos(creator_id);`,
		`CREATE TABLE IF NOT EXISTS meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	_, err := db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('schema_version', ?) ON CONFLICT(key) DO NOTHING`,
		fmt.Sprint(SchemaVersion))
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// StoredSchemaVersion 读取库内记录的表结构版本。
func (s *SQLite) StoredSchemaVersion(ctx context.Context) (int, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var v int
	if err := db.QueryRowContext(ctx, `SELECT CAST(value AS INTEGER) FROM meta WHERE key='schema_version'`).Scan(&v); err != nil {
		return 0, storageErr("read schema version", err)
	}
	return v, nil
}

// UpsertCreator 按 user_id 插入或更新达人，返回代理键。
// 已存在时更新可变字段并刷新 updated_at，id 与 collected_at 不变。
func (s *SQLite) UpsertCreator(ctx context.Context, c model.Creator) (int64, error) {
	if strings.TrimSpace(c.UserID) == "" {
		return 0, fmt.Errorf("%w: creator.user_id required", model.ErrStorage)
	}
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer s.observe("upsert_creator", time.Now())
	now := time.Now().UTC()
	var id int64
	err = db.QueryRowContext(ctx, `INSERT INTO creators(user_id, username, avatar_url, bio, follower_count, following_count, like_count, video_count, collected_at)
        VALUES(?,?,?,?,?,?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET username=excluded.username, avatar_url=excluded.avatar_url, bio=excluded.bio,
            follower_count=excluded.follower_count, following_count=excluded.following_count,
            like_count=excluded.like_count, video_count=excluded.video_count, updated_at=?
        RETURNING id`,
		c.UserID, c.Username, c.AvatarURL, c.Bio, c.FollowerCount, c.FollowingCount, c.LikeCount, c.PostCount, now, now).Scan(&id)
	if err != nil {
		return 0, storageErr("upsert creator "+c.UserID, err)
	}
	return id, nil
}

// UpsertPost 按 video_id 插入或更新作品，返回代理键。
// 已存在时只更新标题/封面/指标/发布时间，creator_id 与 collected_at 不变。
func (s *SQLite) UpsertPost(ctx context.Context, creatorID int64, p model.Post) (int64, error) {
	if strings.TrimSpace(p.PostID) == "" {
		return 0, fmt.Errorf("%w: post.video_id required", model.ErrStorage)
	}
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer s.observe("upsert_post", time.Now())
	var published any
	if p.PublishedAt != nil {
		published = p.PublishedAt.UTC()
	}
	var id int64
	err = db.QueryRowContext(ctx, `INSERT INTO videos(creator_id, video_id, title, cover_url, play_count, like_count, comment_count, share_count, created_at, collected_at)
        VALUES(?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(video_id) DO UPDATE SET title=excluded.title, cover_url=excluded.cover_url,
            play_count=excluded.play_count, like_count=excluded.like_count,
            comment_count=excluded.comment_count, share_count=excluded.share_count,
            created_at=COALESCE(excluded.created_at, videos.created_at)
        RETURNING id`,
		creatorID, p.PostID, p.Title, p.CoverURL, p.PlayCount, p.LikeCount, p.CommentCount, p.ShareCount, published, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, storageErr("upsert post "+p.PostID, err)
	}
	return id, nil
}

// InsertPosts 逐条写入作品；每条单独提交，中途失败时已写入的作品保留。
func (s *SQLite) InsertPosts(ctx context.Context, creatorID int64, posts []model.Post) error {
	for i, p := range posts {
		if _, err := s.UpsertPost(ctx, creatorID, p); err != nil {
			return fmt.Errorf("insert posts (%d/%d): %w", i+1, len(posts), err)
		}
	}
	return nil
}

const creatorColumns = `id, user_id, username, avatar_url, bio, follower_count, following_count, like_count, video_count, collected_at, updated_at`

// GetAllCreators 返回全部达人，按 collected_at 倒序。
func (s *SQLite) GetAllCreators(ctx context.Context) ([]model.Creator, error) {
	return s.queryCreators(ctx, `SELECT `+creatorColumns+` FROM creators ORDER BY collected_at DESC, id DESC`)
}

// SearchCreators 按用户名或简介做子串匹配；关键字为空时返回全部。
func (s *SQLite) SearchCreators(ctx context.Context, keyword string) ([]model.Creator, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	return s.queryCreators(ctx, `SELECT `+creatorColumns+` FROM creators
        WHERE username LIKE ? ESCAPE '\' OR bio LIKE ? ESCAPE '\'
        ORDER BY collected_at DESC, id DESC`, pattern, pattern)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLite) queryCreators(ctx context.Context, q string, args ...any) ([]model.Creator, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query creators", err)
	}
	defer rows.Close()
	out := []model.Creator{}
	for rows.Next() {
		var c model.Creator
		var collectedAt, updatedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.UserID, &c.Username, &c.AvatarURL, &c.Bio,
			&c.FollowerCount, &c.FollowingCount, &c.LikeCount, &c.PostCount, &collectedAt, &updatedAt); err != nil {
			return nil, storageErr("scan creators", err)
		}
		if collectedAt.Valid {
			c.CollectedAt = collectedAt.Time
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			c.UpdatedAt = &t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate creators", err)
	}
	return out, nil
}

// GetCreatorByUserID 按自然键查找达人，不存在时返回 (nil, nil)。
func (s *SQLite) GetCreatorByUserID(ctx context.Context, userID string) (*model.Creator, error) {
	list, err := s.queryCreators(ctx, `SELECT `+creatorColumns+` FROM creators WHERE user_id = ?`, userID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// GetPostsByCreator 返回某达人的全部作品，按发布时间倒序（无发布时间的排在最后）。
func (s *SQLite) GetPostsByCreator(ctx context.Context, creatorID int64) ([]model.Post, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, creator_id, video_id, title, cover_url, play_count, like_count, comment_count, share_count, created_at, collected_at
        FROM videos WHERE creator_id = ? ORDER BY created_at DESC, id DESC`, creatorID)
	if err != nil {
		return nil, storageErr("query posts", err)
	}
	defer rows.Close()
	out := []model.Post{}
	for rows.Next() {
		var p model.Post
		var creator sql.NullInt64
		var published, collectedAt sql.NullTime
		if err := rows.Scan(&p.ID, &creator, &p.PostID, &p.Title, &p.CoverURL,
			&p.PlayCount, &p.LikeCount, &p.CommentCount, &p.ShareCount, &published, &collectedAt); err != nil {
			return nil, storageErr("scan posts", err)
		}
		p.CreatorID = creator.Int64
		if published.Valid {
			t := published.Time
			p.PublishedAt = &t
		}
		if collectedAt.Valid {
			p.CollectedAt = collectedAt.Time
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate posts", err)
	}
	return out, nil
}

// GetStatistics 统计达人数、作品数与粉丝总数。
func (s *SQLite) GetStatistics(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	db, err := s.conn(ctx)
	if err != nil {
		return st, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(follower_count), 0) FROM creators`).Scan(&st.CreatorCount, &st.TotalFollowers); err != nil {
		return st, storageErr("count creators", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM videos`).Scan(&st.PostCount); err != nil {
		return st, storageErr("count posts", err)
	}
	return st, nil
}

// ExportAll 返回全量快照：每个达人展开其字段并附带全部作品。
func (s *SQLite) ExportAll(ctx context.Context) ([]model.ExportEntry, error) {
	creators, err := s.GetAllCreators(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExportEntry, 0, len(creators))
	for _, c := range creators {
		posts, err := s.GetPostsByCreator(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ExportEntry{Creator: c, Posts: posts})
	}
	return out, nil
}

// Clear 在一个事务内先清作品再清达人（不删除数据库文件）。
func (s *SQLite) Clear(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer s.observe("clear", time.Now())
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin clear", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM videos`); err != nil {
		return storageErr("delete videos", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM creators`); err != nil {
		return storageErr("delete creators", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit clear", err)
	}
	return nil
}

func (s *SQLite) observe(op string, start time.Time) {
	s.mu.Lock()
	fn := s.onWrite
	s.mu.Unlock()
	if fn != nil {
		fn(op, time.Since(start))
	}
}

// storageErr 同时保留 ErrStorage 与底层错误，两者都可被 errors.Is 匹配。
func storageErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStorage, what, err)
}
