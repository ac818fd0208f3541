// Package storage 把存档保存在 SQLite 中
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// ErrNotFound 表示存档不存在
var ErrNotFound = errors.New("saved game not found")

// SavedGame 是 saved_games 表中的一行
type SavedGame struct {
	ID        int64
	Name      string
	Filename  string
	State     string
	History   []string
	Score     int
	PlayTime  time.Duration
	Won       bool
	Archived  bool
	Timestamp time.Time
}

// Stats 汇总一个规则程序的战绩
type Stats struct {
	Played    int
	Won       int
	HighScore int
	// BestTime 是获胜对局中最短的用时，没有胜局时为 -1
	BestTime time.Duration
}

// Store 是基于 SQLite 的存档仓库
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open 打开 SQLite 存储并建表
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Insert 保存一局新存档，返回其 id
func (s *Store) Insert(ctx context.Context, game SavedGame) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if strings.TrimSpace(game.Filename) == "" {
		return 0, fmt.Errorf("script filename is required")
	}
	history, err := json.Marshal(nonNil(game.History))
	if err != nil {
		return 0, fmt.Errorf("encode history: %w", err)
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO saved_games (
		   name, script_filename, game_state, timestamp, history,
		   score, play_time, won, archived, deleted
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		game.Name,
		game.Filename,
		game.State,
		toMillis(s.timestamp(game)),
		string(history),
		game.Score,
		game.PlayTime.Milliseconds(),
		game.Won,
		game.Archived,
	)
	if err != nil {
		return 0, fmt.Errorf("insert saved game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert saved game id: %w", err)
	}
	return id, nil
}

// Update 覆盖指定 id 的存档
func (s *Store) Update(ctx context.Context, id int64, game SavedGame) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	history, err := json.Marshal(nonNil(game.History))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE saved_games
		 SET name = ?, script_filename = ?, game_state = ?, timestamp = ?,
		     history = ?, score = ?, play_time = ?, won = ?
		 WHERE id = ? AND deleted = 0`,
		game.Name,
		game.Filename,
		game.State,
		toMillis(s.timestamp(game)),
		string(history),
		game.Score,
		game.PlayTime.Milliseconds(),
		game.Won,
		id,
	)
	if err != nil {
		return fmt.Errorf("update saved game %d: %w", id, err)
	}
	return expectRow(res, id)
}

// Get 读取一局存档
func (s *Store) Get(ctx context.Context, id int64) (SavedGame, error) {
	if err := s.check(ctx); err != nil {
		return SavedGame{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, script_filename, game_state, timestamp, history,
		        score, play_time, won, archived
		 FROM saved_games WHERE id = ? AND deleted = 0`,
		id,
	)
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedGame{}, ErrNotFound
	}
	if err != nil {
		return SavedGame{}, fmt.Errorf("get saved game %d: %w", id, err)
	}
	return game, nil
}

// List 返回所有未归档且未删除的存档，最新的在前
func (s *Store) List(ctx context.Context) ([]SavedGame, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, script_filename, game_state, timestamp, history,
		        score, play_time, won, archived
		 FROM saved_games WHERE archived = 0 AND deleted = 0
		 ORDER BY timestamp DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list saved games: %w", err)
	}
	defer rows.Close()

	var games []SavedGame
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saved games: %w", err)
	}
	return games, nil
}

// Archive 让存档不再出现在 List 中，归档的对局仍计入 Stats
func (s *Store) Archive(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, true)
}

// Unarchive 让归档的存档重新出现在 List 中
func (s *Store) Unarchive(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, false)
}

func (s *Store) setArchived(ctx context.Context, id int64, archived bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE saved_games SET archived = ? WHERE id = ? AND deleted = 0`, archived, id)
	if err != nil {
		return fmt.Errorf("archive saved game %d: %w", id, err)
	}
	return expectRow(res, id)
}

// Reset 把一个规则程序的所有对局标记为删除，即清空其战绩
func (s *Store) Reset(ctx context.Context, filename string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`UPDATE saved_games SET deleted = 1 WHERE script_filename = ?`, filename); err != nil {
		return fmt.Errorf("reset %s: %w", filename, err)
	}
	return nil
}

// Stats 返回一个规则程序的汇总战绩
func (s *Store) Stats(ctx context.Context, filename string) (Stats, error) {
	if err := s.check(ctx); err != nil {
		return Stats{}, err
	}
	var (
		st        Stats
		highScore sql.NullInt64
		bestTime  sql.NullInt64
	)
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(won), 0),
		        MAX(CASE WHEN won = 1 THEN score END),
		        MIN(CASE WHEN won = 1 THEN play_time END)
		 FROM saved_games WHERE script_filename = ? AND deleted = 0`,
		filename,
	).Scan(&st.Played, &st.Won, &highScore, &bestTime)
	if err != nil {
		return Stats{}, fmt.Errorf("stats for %s: %w", filename, err)
	}
	st.HighScore = -1
	if highScore.Valid {
		st.HighScore = int(highScore.Int64)
	}
	st.BestTime = -1
	if bestTime.Valid {
		st.BestTime = time.Duration(bestTime.Int64) * time.Millisecond
	}
	return st, nil
}

// Filenames 返回至少有一局未删除对局的规则程序
func (s *Store) Filenames(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT DISTINCT script_filename FROM saved_games WHERE deleted = 0 ORDER BY script_filename`)
	if err != nil {
		return nil, fmt.Errorf("list filenames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) timestamp(game SavedGame) time.Time {
	if game.Timestamp.IsZero() {
		return s.now()
	}
	return game.Timestamp
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (SavedGame, error) {
	var (
		game      SavedGame
		timestamp int64
		history   string
		playTime  int64
	)
	if err := row.Scan(
		&game.ID,
		&game.Name,
		&game.Filename,
		&game.State,
		&timestamp,
		&history,
		&game.Score,
		&playTime,
		&game.Won,
		&game.Archived,
	); err != nil {
		return SavedGame{}, err
	}
	game.Timestamp = fromMillis(timestamp)
	game.PlayTime = time.Duration(playTime) * time.Millisecond
	if err := json.Unmarshal([]byte(history), &game.History); err != nil {
		return SavedGame{}, fmt.Errorf("decode history: %w", err)
	}
	return game, nil
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("saved game %d: %w", id, ErrNotFound)
	}
	return nil
}

func nonNil(history []string) []string {
	if history == nil {
		return []string{}
	}
	return history
}
