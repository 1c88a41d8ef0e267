package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// MemoryStore keeps everything in process memory. It honours the same
// per-video exclusivity and all-or-nothing commit rules as the Postgres
// repos and backs tests and STORE=memory deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	videos     map[model.VideoKey]*memVideo
	order      []model.VideoKey
	segVideo   map[int64]model.VideoKey
	submitters map[string]*model.Submitter
	nextVideo  int64
	nextSeg    int64
	now        func() time.Time
}

type memVideo struct {
	mu    sync.Mutex
	video model.Video
	segs  []model.Segment
	votes map[voteKey]model.Direction
}

type voteKey struct {
	segmentID int64
	voterID   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:     make(map[model.VideoKey]*memVideo),
		segVideo:   make(map[int64]model.VideoKey),
		submitters: make(map[string]*model.Submitter),
		now:        time.Now,
	}
}

func (m *MemoryStore) video(key model.VideoKey, create bool) *memVideo {
	m.mu.RLock()
	v, ok := m.videos[key]
	m.mu.RUnlock()
	if ok || !create {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.videos[key]; ok {
		return v
	}
	m.nextVideo++
	v = &memVideo{
		video: model.Video{ID: m.nextVideo, ContentID: key.ContentID, PartID: key.PartID, CreatedAt: m.now()},
		votes: make(map[voteKey]model.Direction),
	}
	m.videos[key] = v
	m.order = append(m.order, key)
	return v
}

// UpdateVideo stages all changes on copies and applies them only when fn
// returns nil.
func (m *MemoryStore) UpdateVideo(ctx context.Context, key model.VideoKey, create bool, fn func(tx VideoTx) error) error {
	v := m.video(key, create)
	if v == nil {
		return model.ErrNotFound
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memVideoTx{
		store:  m,
		video:  v.video,
		segs:   append([]model.Segment(nil), v.segs...),
		votes:  make(map[voteKey]model.Direction),
		parent: v.votes,
		points: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}

	v.segs = tx.segs
	for k, d := range tx.votes {
		v.votes[k] = d
	}

	m.mu.Lock()
	for _, s := range tx.inserted {
		m.segVideo[s] = key
	}
	for id, pts := range tx.points {
		u, ok := m.submitters[id]
		if !ok {
			u = &model.Submitter{SubmitterID: id, FirstSeen: m.now()}
			m.submitters[id] = u
		}
		u.Points += pts
		u.Submissions += tx.submissions[id]
		u.LastActive = m.now()
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) VideoOf(ctx context.Context, segmentID int64) (model.VideoKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.segVideo[segmentID]
	if !ok {
		return model.VideoKey{}, model.ErrNotFound
	}
	return key, nil
}

func (m *MemoryStore) ListActive(ctx context.Context, key model.VideoKey) ([]model.Segment, error) {
	out := make([]model.Segment, 0)
	v := m.video(key, false)
	if v == nil {
		return out, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range v.segs {
		if s.Status == model.StatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordSkip(ctx context.Context, segmentID int64) error {
	key, err := m.VideoOf(ctx, segmentID)
	if err != nil {
		return err
	}
	v := m.video(key, false)

	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.segs {
		if v.segs[i].ID == segmentID && v.segs[i].Status == model.StatusActive {
			v.segs[i].SkipCount++
			return nil
		}
	}
	return model.ErrNotFound
}

func (m *MemoryStore) VideoKeys(ctx context.Context) ([]model.VideoKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.VideoKey(nil), m.order...), nil
}

func (m *MemoryStore) FindSubmitter(ctx context.Context, submitterID string) (*model.Submitter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.submitters[submitterID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) ListContributions(ctx context.Context, submitterID string, limit, offset int) ([]model.Contribution, int, error) {
	var all []model.Segment
	for _, v := range m.snapshot() {
		for _, s := range v {
			if s.SubmitterID == submitterID {
				all = append(all, s)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	list := make([]model.Contribution, 0, limit)
	for i := offset; i < len(all) && len(list) < limit; i++ {
		s := all[i]
		list = append(list, model.Contribution{
			ID:         s.ID,
			VideoID:    s.Video.ContentID,
			PartID:     s.Video.PartID,
			StartTime:  s.Start,
			EndTime:    s.End,
			Category:   s.Category,
			Confidence: s.Confidence,
			Active:     s.Active,
		})
	}
	return list, len(all), nil
}

func (m *MemoryStore) Overview(ctx context.Context) (*model.StatsOverview, error) {
	snap := m.snapshot()
	stats := &model.StatsOverview{TotalVideos: len(snap)}
	for _, segs := range snap {
		for _, s := range segs {
			stats.TotalSegments++
			if s.Active {
				stats.ActiveSegments++
			}
			stats.TotalVotes += s.VoteCount
			stats.TotalSkips += s.SkipCount
		}
	}
	m.mu.RLock()
	stats.TotalSubmitters = len(m.submitters)
	m.mu.RUnlock()
	return stats, nil
}

func (m *MemoryStore) PopularVideos(ctx context.Context, limit int) ([]model.PopularVideo, error) {
	snap := m.snapshot()
	m.mu.RLock()
	order := append([]model.VideoKey(nil), m.order...)
	m.mu.RUnlock()

	videos := make([]model.PopularVideo, 0, len(order))
	for _, k := range order {
		videos = append(videos, model.PopularVideo{VideoID: k.ContentID, PartID: k.PartID, SegmentCount: len(snap[k])})
	}
	sort.SliceStable(videos, func(i, j int) bool { return videos[i].SegmentCount > videos[j].SegmentCount })
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func (m *MemoryStore) TopSubmitters(ctx context.Context, limit int) ([]model.Submitter, error) {
	m.mu.RLock()
	users := make([]model.Submitter, 0, len(m.submitters))
	for _, u := range m.submitters {
		users = append(users, *u)
	}
	m.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].Points != users[j].Points {
			return users[i].Points > users[j].Points
		}
		return users[i].SubmitterID < users[j].SubmitterID
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// snapshot copies every video's segments, taking each video lock in turn.
func (m *MemoryStore) snapshot() map[model.VideoKey][]model.Segment {
	m.mu.RLock()
	videos := make(map[model.VideoKey]*memVideo, len(m.videos))
	for k, v := range m.videos {
		videos[k] = v
	}
	m.mu.RUnlock()

	out := make(map[model.VideoKey][]model.Segment, len(videos))
	for k, v := range videos {
		v.mu.Lock()
		out[k] = append([]model.Segment(nil), v.segs...)
		v.mu.Unlock()
	}
	return out
}

type memVideoTx struct {
	store       *MemoryStore
	video       model.Video
	segs        []model.Segment
	votes       map[voteKey]model.Direction
	parent      map[voteKey]model.Direction
	points      map[string]int
	submissions map[string]int
	inserted    []int64
}

func (t *memVideoTx) Video() model.Video { return t.video }

func (t *memVideoTx) Segments() []model.Segment {
	return append([]model.Segment(nil), t.segs...)
}

func (t *memVideoTx) Insert(ctx context.Context, seg *model.Segment) error {
	t.store.mu.Lock()
	t.store.nextSeg++
	seg.ID = t.store.nextSeg
	t.store.mu.Unlock()

	now := t.store.now()
	seg.VideoID = t.video.ID
	seg.Video = t.video.Key()
	seg.CreatedAt = now
	seg.UpdatedAt = now

	t.segs = append(t.segs, *seg)
	sort.SliceStable(t.segs, func(i, j int) bool {
		if t.segs[i].Start != t.segs[j].Start {
			return t.segs[i].Start < t.segs[j].Start
		}
		return t.segs[i].ID < t.segs[j].ID
	})
	t.inserted = append(t.inserted, seg.ID)
	return nil
}

func (t *memVideoTx) Save(ctx context.Context, seg model.Segment) error {
	for i := range t.segs {
		if t.segs[i].ID == seg.ID {
			seg.UpdatedAt = t.store.now()
			t.segs[i] = seg
			return nil
		}
	}
	return model.ErrNotFound
}

func (t *memVideoTx) PreviousVote(ctx context.Context, segmentID int64, voterID string) (model.Direction, bool, error) {
	k := voteKey{segmentID: segmentID, voterID: voterID}
	if d, ok := t.votes[k]; ok {
		return d, true, nil
	}
	d, ok := t.parent[k]
	return d, ok, nil
}

func (t *memVideoTx) RecordVote(ctx context.Context, segmentID int64, voterID string, dir model.Direction) error {
	t.votes[voteKey{segmentID: segmentID, voterID: voterID}] = dir
	return nil
}

func (t *memVideoTx) AwardPoints(ctx context.Context, submitterID string, points int) error {
	if t.submissions == nil {
		t.submissions = make(map[string]int)
	}
	t.points[submitterID] += points
	t.submissions[submitterID]++
	return nil
}
