package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

var key = model.VideoKey{ContentID: "BV1xx411c7mD", PartID: "1"}

func insert(t *testing.T, m *MemoryStore, start, end float64) int64 {
	t.Helper()
	var id int64
	err := m.UpdateVideo(context.Background(), key, true, func(tx VideoTx) error {
		seg := model.Segment{Start: start, End: end, Category: model.CategoryHardAd, Upvotes: 1}
		seg.SetStatus(model.StatusActive)
		if err := tx.Insert(context.Background(), &seg); err != nil {
			return err
		}
		id = seg.ID
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestMemoryStore_MissingVideo(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	err := m.UpdateVideo(ctx, key, false, func(tx VideoTx) error { return nil })
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateVideo without create = %v, want ErrNotFound", err)
	}

	segs, err := m.ListActive(ctx, key)
	if err != nil || len(segs) != 0 {
		t.Errorf("ListActive on unknown video = %v, %v; want empty, nil", segs, err)
	}

	if _, err := m.VideoOf(ctx, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("VideoOf unknown segment = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_FailedUpdateLeavesNoTrace(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	id := insert(t, m, 0, 30)

	boom := errors.New("boom")
	err := m.UpdateVideo(ctx, key, false, func(tx VideoTx) error {
		segs := tx.Segments()
		segs[0].Upvotes = 99
		if err := tx.Save(ctx, segs[0]); err != nil {
			return err
		}
		if err := tx.RecordVote(ctx, id, "bob", model.DirectionUp); err != nil {
			return err
		}
		if err := tx.AwardPoints(ctx, "bob", 10); err != nil {
			return err
		}
		extra := model.Segment{Start: 40, End: 50, Category: model.CategoryMidAd}
		if err := tx.Insert(ctx, &extra); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateVideo = %v, want boom", err)
	}

	segs, _ := m.ListActive(ctx, key)
	if len(segs) != 1 || segs[0].Upvotes != 1 {
		t.Errorf("segments after rollback = %+v, want one untouched segment", segs)
	}
	if _, err := m.FindSubmitter(ctx, "bob"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("points leaked from a failed update: %v", err)
	}
	err = m.UpdateVideo(ctx, key, false, func(tx VideoTx) error {
		if _, ok, _ := tx.PreviousVote(ctx, id, "bob"); ok {
			t.Error("vote leaked from a failed update")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemoryStore_SegmentsOrderedByStart(t *testing.T) {
	m := NewMemoryStore()
	insert(t, m, 50, 60)
	insert(t, m, 0, 10)
	insert(t, m, 20, 30)

	segs, _ := m.ListActive(context.Background(), key)
	for i := 1; i < len(segs); i++ {
		if segs[i-1].Start > segs[i].Start {
			t.Fatalf("ListActive not ordered by start: %+v", segs)
		}
	}
}

func TestMemoryStore_RecordSkipOnlyOnActive(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	id := insert(t, m, 0, 30)

	if err := m.RecordSkip(ctx, id); err != nil {
		t.Fatalf("RecordSkip: %v", err)
	}

	err := m.UpdateVideo(ctx, key, false, func(tx VideoTx) error {
		s := tx.Segments()[0]
		s.SetStatus(model.StatusRetired)
		return tx.Save(ctx, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.RecordSkip(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("RecordSkip on retired segment = %v, want ErrNotFound", err)
	}
}
