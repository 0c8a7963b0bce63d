package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdulaziz-python/giftme/internal/domain/enums"
	"github.com/abdulaziz-python/giftme/internal/domain/model"
	pgrepo "github.com/abdulaziz-python/giftme/internal/repo/postgres"
)

type broadcastStoreStub struct {
	nextID     int64
	broadcasts map[int64]model.Broadcast
	logs       []model.BroadcastLog
}

func newBroadcastStoreStub() *broadcastStoreStub {
	return &broadcastStoreStub{nextID: 1, broadcasts: make(map[int64]model.Broadcast)}
}

func (s *broadcastStoreStub) CreateDraft(_ context.Context, title, text, imageURL string, createdBy, targetUsers int64) (model.Broadcast, error) {
	b := model.Broadcast{
		ID:          s.nextID,
		Title:       title,
		Text:        text,
		ImageURL:    imageURL,
		Status:      enums.BroadcastStatusDraft,
		TargetUsers: targetUsers,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	s.nextID++
	s.broadcasts[b.ID] = b
	return b, nil
}

func (s *broadcastStoreStub) Find(_ context.Context, id int64) (model.Broadcast, error) {
	b, ok := s.broadcasts[id]
	if !ok {
		return model.Broadcast{}, pgrepo.ErrBroadcastNotFound
	}
	return b, nil
}

func (s *broadcastStoreStub) List(_ context.Context, _ int) ([]model.Broadcast, error) {
	var items []model.Broadcast
	for _, b := range s.broadcasts {
		items = append(items, b)
	}
	return items, nil
}

func (s *broadcastStoreStub) MarkSending(_ context.Context, id, targetUsers int64, at time.Time) (model.Broadcast, error) {
	b, ok := s.broadcasts[id]
	if !ok {
		return model.Broadcast{}, pgrepo.ErrBroadcastNotFound
	}
	if b.Status != enums.BroadcastStatusDraft {
		return model.Broadcast{}, pgrepo.ErrBroadcastNotDraft
	}
	b.Status = enums.BroadcastStatusSending
	b.TargetUsers = targetUsers
	b.StartedAt = &at
	s.broadcasts[id] = b
	return b, nil
}

func (s *broadcastStoreStub) UpdateProgress(_ context.Context, id, sent, failed int64) error {
	b, ok := s.broadcasts[id]
	if !ok {
		return pgrepo.ErrBroadcastNotFound
	}
	b.SentCount = sent
	b.FailedCount = failed
	s.broadcasts[id] = b
	return nil
}

func (s *broadcastStoreStub) Finish(_ context.Context, id int64, status enums.BroadcastStatus, sent, failed int64, at time.Time) (model.Broadcast, error) {
	b, ok := s.broadcasts[id]
	if !ok {
		return model.Broadcast{}, pgrepo.ErrBroadcastNotFound
	}
	b.Status = status
	b.SentCount = sent
	b.FailedCount = failed
	b.CompletedAt = &at
	s.broadcasts[id] = b
	return b, nil
}

func (s *broadcastStoreStub) InsertLog(_ context.Context, broadcastID, userID int64, delivered bool, errText string, at time.Time) error {
	s.logs = append(s.logs, model.BroadcastLog{
		BroadcastID: broadcastID,
		UserID:      userID,
		Delivered:   delivered,
		ErrorText:   errText,
		SentAt:      at,
	})
	return nil
}

type userSourceStub struct {
	ids []int64
}

func (s *userSourceStub) ListTelegramIDs(_ context.Context, _ bool) ([]int64, error) {
	return s.ids, nil
}

type senderStub struct {
	sent    []int64
	failFor map[int64]error
}

func (s *senderStub) SendBroadcast(_ context.Context, telegramID int64, _, _ string) error {
	if err, ok := s.failFor[telegramID]; ok {
		return err
	}
	s.sent = append(s.sent, telegramID)
	return nil
}

func newTestService(store Store, users UserSource, sender Sender) *Service {
	svc := NewService(Dependencies{Store: store, Users: users, Sender: sender}, 2, time.Millisecond)
	return svc
}

func TestLaunchDeliversToAllRecipients(t *testing.T) {
	store := newBroadcastStoreStub()
	sender := &senderStub{}
	svc := newTestService(store, &userSourceStub{ids: []int64{1, 2, 3, 4, 5}}, sender)

	draft, err := svc.CreateDraft(context.Background(), "News", "hello", "", 42)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	finished, err := svc.Launch(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	if finished.Status != enums.BroadcastStatusCompleted {
		t.Fatalf("unexpected status: %s", finished.Status)
	}
	if finished.SentCount != 5 || finished.FailedCount != 0 {
		t.Fatalf("unexpected counters: sent=%d failed=%d", finished.SentCount, finished.FailedCount)
	}
	if len(sender.sent) != 5 {
		t.Fatalf("expected 5 sends, got %d", len(sender.sent))
	}
	if len(store.logs) != 5 {
		t.Fatalf("expected 5 delivery logs, got %d", len(store.logs))
	}
}

func TestLaunchCountsFailuresPerRecipient(t *testing.T) {
	store := newBroadcastStoreStub()
	sender := &senderStub{failFor: map[int64]error{2: errors.New("blocked by user")}}
	svc := newTestService(store, &userSourceStub{ids: []int64{1, 2, 3}}, sender)

	draft, err := svc.CreateDraft(context.Background(), "News", "hello", "", 42)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	finished, err := svc.Launch(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	if finished.SentCount != 2 || finished.FailedCount != 1 {
		t.Fatalf("unexpected counters: sent=%d failed=%d", finished.SentCount, finished.FailedCount)
	}
	if finished.Status != enums.BroadcastStatusCompleted {
		t.Fatalf("partial failure should still complete, got %s", finished.Status)
	}

	var failedLogs int
	for _, log := range store.logs {
		if !log.Delivered {
			failedLogs++
			if log.ErrorText == "" {
				t.Fatal("failed log missing error text")
			}
		}
	}
	if failedLogs != 1 {
		t.Fatalf("expected one failed log, got %d", failedLogs)
	}
}

func TestLaunchTwiceSecondLoses(t *testing.T) {
	store := newBroadcastStoreStub()
	svc := newTestService(store, &userSourceStub{ids: []int64{1}}, &senderStub{})

	draft, err := svc.CreateDraft(context.Background(), "News", "hello", "", 42)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if _, err := svc.Launch(context.Background(), draft.ID); err != nil {
		t.Fatalf("first launch: %v", err)
	}
	if _, err := svc.Launch(context.Background(), draft.ID); !errors.Is(err, pgrepo.ErrBroadcastNotDraft) {
		t.Fatalf("expected ErrBroadcastNotDraft, got %v", err)
	}
}

func TestLaunchHonorsFloodWaitHint(t *testing.T) {
	store := newBroadcastStoreStub()
	floodErr := errors.New("too many requests")
	sender := &senderStub{failFor: map[int64]error{2: floodErr}}

	var hints []error
	svc := NewService(Dependencies{
		Store:  store,
		Users:  &userSourceStub{ids: []int64{1, 2, 3}},
		Sender: sender,
		RetryAfter: func(err error) time.Duration {
			hints = append(hints, err)
			if errors.Is(err, floodErr) {
				return 5 * time.Millisecond
			}
			return 0
		},
	}, 10, time.Millisecond)

	draft, err := svc.CreateDraft(context.Background(), "News", "hello", "", 42)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	started := time.Now()
	finished, err := svc.Launch(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	if elapsed := time.Since(started); elapsed < 5*time.Millisecond {
		t.Fatalf("flood wait not honored, run took %v", elapsed)
	}
	if len(hints) != 1 || !errors.Is(hints[0], floodErr) {
		t.Fatalf("expected one flood hint lookup, got %v", hints)
	}
	if finished.SentCount != 2 || finished.FailedCount != 1 {
		t.Fatalf("unexpected counters: sent=%d failed=%d", finished.SentCount, finished.FailedCount)
	}
}

func TestLaunchAllFailedMarksFailed(t *testing.T) {
	store := newBroadcastStoreStub()
	sender := &senderStub{failFor: map[int64]error{1: errors.New("x"), 2: errors.New("y")}}
	svc := newTestService(store, &userSourceStub{ids: []int64{1, 2}}, sender)

	draft, err := svc.CreateDraft(context.Background(), "News", "hello", "", 42)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	finished, err := svc.Launch(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if finished.Status != enums.BroadcastStatusFailed {
		t.Fatalf("expected failed status, got %s", finished.Status)
	}
}
