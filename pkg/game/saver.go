package game

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/decker502/patience/pkg/engine"
	"github.com/decker502/patience/pkg/storage"
)

// Store 是存档的持久化接口，通常是 *storage.Store
type Store interface {
	Insert(ctx context.Context, game storage.SavedGame) (int64, error)
	Update(ctx context.Context, id int64, game storage.SavedGame) error
}

type saveRequest struct {
	snapshot engine.Snapshot
	playTime time.Duration
}

// Saver 在后台协程中写存档，游戏循环不会被数据库阻塞
//
// 第一次保存插入新记录，之后的保存更新同一条记录。
// 保存失败只记录日志，游戏继续。
type Saver struct {
	store    Store
	requests chan saveRequest
	group    *errgroup.Group
	ctx      context.Context
	now      func() time.Time

	idMu sync.Mutex
	id   int64

	sendMu sync.Mutex
	closed bool
}

// NewSaver 启动后台保存协程
//
// id 为已有存档的编号，0 表示尚未保存过
func NewSaver(ctx context.Context, store Store, id int64) *Saver {
	group, gctx := errgroup.WithContext(ctx)
	s := &Saver{
		store:    store,
		requests: make(chan saveRequest, 8),
		group:    group,
		ctx:      gctx,
		now:      time.Now,
		id:       id,
	}
	group.Go(s.run)
	return s
}

// ID 返回存档编号，尚未保存时为 0
func (s *Saver) ID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.id
}

// Save 把快照放入保存队列
//
// Close 之后的调用被忽略
func (s *Saver) Save(snapshot engine.Snapshot, playTime time.Duration) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		log.Printf("[Saver] Dropping save of %s: saver closed", snapshot.Filename)
		return
	}
	s.requests <- saveRequest{snapshot: snapshot, playTime: playTime}
}

// Close 等待队列中的存档写完后停止后台协程
func (s *Saver) Close() error {
	s.sendMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.requests)
	}
	s.sendMu.Unlock()
	return s.group.Wait()
}

func (s *Saver) run() error {
	for req := range s.requests {
		s.write(req)
	}
	return nil
}

func (s *Saver) write(req saveRequest) {
	if s.ctx.Err() != nil {
		log.Printf("[Saver] Skipping save of %s: %v", req.snapshot.Filename, s.ctx.Err())
		return
	}
	game := storage.SavedGame{
		Name:      req.snapshot.Name,
		Filename:  req.snapshot.Filename,
		State:     req.snapshot.State,
		History:   req.snapshot.History,
		Score:     req.snapshot.Score,
		PlayTime:  req.playTime,
		Won:       req.snapshot.Won,
		Timestamp: s.now(),
	}

	id := s.ID()
	if id == 0 {
		newID, err := s.store.Insert(s.ctx, game)
		if err != nil {
			log.Printf("[Saver] Failed to insert %s: %v", game.Filename, err)
			return
		}
		s.idMu.Lock()
		s.id = newID
		s.idMu.Unlock()
		log.Printf("[Saver] Saved %s as game %d (score %d)", game.Filename, newID, game.Score)
		return
	}
	if err := s.store.Update(s.ctx, id, game); err != nil {
		log.Printf("[Saver] Failed to update game %d: %v", id, err)
		return
	}
	log.Printf("[Saver] Updated game %d (score %d)", id, game.Score)
}
