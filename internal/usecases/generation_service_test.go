package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"imagebot/internal/entities"

	"github.com/rs/zerolog"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []entities.GenerationRequest
	err   error
	block bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req entities.GenerationRequest) (*entities.GenerationResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return &entities.GenerationResult{ImageURL: "https://img/" + req.ID + ".jpg"}, nil
}

type fakeMessenger struct {
	mu       sync.Mutex
	texts    []string
	photos   []string
	photoErr error
	onPhoto  func()
}

func (m *fakeMessenger) SendMessage(_ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *fakeMessenger) SendPhotoURL(_ int64, url, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.photoErr != nil {
		return m.photoErr
	}
	m.photos = append(m.photos, url)
	if m.onPhoto != nil {
		m.onPhoto()
	}
	return nil
}

type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, text string) (string, error) {
	return "EN:" + text, nil
}

type generationFixture struct {
	store     *fakeLedger
	quota     *QuotaUsecase
	sessions  *SessionUsecase
	generator *fakeGenerator
	messenger *fakeMessenger
	service   *GenerationService
}

func newGenerationFixture(t *testing.T, limit int) *generationFixture {
	t.Helper()
	f := &generationFixture{
		store:     newFakeLedger(),
		generator: &fakeGenerator{},
		messenger: &fakeMessenger{},
	}
	f.quota = newTestQuota(f.store, limit)
	f.sessions = newTestSessions(t)
	f.service = NewGenerationService(f.quota, f.sessions, f.generator, upperTranslator{}, f.messenger, 50*time.Millisecond, zerolog.Nop())
	return f
}

func TestGeneration_FreeSuccessCommits(t *testing.T) {
	f := newGenerationFixture(t, 1)

	if err := f.service.Generate(context.Background(), 1, 100, "  кот  "); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(f.messenger.photos) != 1 {
		t.Fatalf("photos sent = %d, want 1", len(f.messenger.photos))
	}
	req := f.generator.calls[0]
	if req.Prompt != "EN:кот" || req.Mode != entities.ModeTxt2Img || req.AspectRatio != entities.DefaultAspectRatio {
		t.Errorf("unexpected request %+v", req)
	}
	if used, _ := f.store.counters(1, f.quota.Today()); used != 1 {
		t.Errorf("used_count = %d, want 1", used)
	}
}

func TestGeneration_PaidSuccessDebits(t *testing.T) {
	f := newGenerationFixture(t, 0)
	f.store.setBalance(1, 2)

	if err := f.service.Generate(context.Background(), 1, 100, "dog"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, balance := f.store.counters(1, f.quota.Today()); balance != 1 {
		t.Errorf("balance = %d, want 1", balance)
	}
}

func TestGeneration_DeniedSkipsGenerator(t *testing.T) {
	f := newGenerationFixture(t, 0)

	err := f.service.Generate(context.Background(), 1, 100, "dog")
	if !errors.Is(err, entities.ErrQuotaDenied) {
		t.Fatalf("err = %v, want ErrQuotaDenied", err)
	}
	if len(f.generator.calls) != 0 {
		t.Error("generator called for denied user")
	}
	if used, balance := f.store.counters(1, f.quota.Today()); used != 0 || balance != 0 {
		t.Errorf("counters changed: used=%d balance=%d", used, balance)
	}
}

func TestGeneration_FailuresDoNotCommit(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*generationFixture)
	}{
		{"generator error", func(f *generationFixture) { f.generator.err = errors.New("boom") }},
		{"timeout", func(f *generationFixture) { f.generator.block = true }},
		{"delivery error", func(f *generationFixture) { f.messenger.photoErr = errors.New("telegram down") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGenerationFixture(t, 1)
			f.store.setBalance(1, 3)
			tt.setup(f)

			if err := f.service.Generate(context.Background(), 1, 100, "dog"); err == nil {
				t.Fatal("expected error")
			}
			used, balance := f.store.counters(1, f.quota.Today())
			if used != 0 || balance != 3 {
				t.Errorf("entitlement consumed: used=%d balance=%d", used, balance)
			}
			if last := f.messenger.texts[len(f.messenger.texts)-1]; last != msgFailed {
				t.Errorf("last message = %q, want failure notice", last)
			}
		})
	}
}

func TestGeneration_CancelAfterDeliveryStillCommits(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		balance     int64
		wantUsed    int
		wantBalance int64
	}{
		{"free", 1, 0, 1, 0},
		{"paid", 0, 2, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGenerationFixture(t, tt.limit)
			if tt.balance > 0 {
				f.store.setBalance(1, tt.balance)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			f.messenger.onPhoto = cancel

			if err := f.service.Generate(ctx, 1, 100, "cat"); err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if len(f.messenger.photos) != 1 {
				t.Fatalf("photos sent = %d, want 1", len(f.messenger.photos))
			}
			used, balance := f.store.counters(1, f.quota.Today())
			if used != tt.wantUsed || balance != tt.wantBalance {
				t.Errorf("used=%d balance=%d, want used=%d balance=%d", used, balance, tt.wantUsed, tt.wantBalance)
			}
		})
	}
}

func TestGeneration_CancelledBeforeResolveGeneratesNothing(t *testing.T) {
	f := newGenerationFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.service.Generate(ctx, 1, 100, "cat"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(f.generator.calls) != 0 {
		t.Error("generator called with a cancelled context")
	}
}

func TestGeneration_StoreDownDoesNotGenerate(t *testing.T) {
	f := newGenerationFixture(t, 1)
	f.store.err = errors.New("connection refused")

	err := f.service.Generate(context.Background(), 1, 100, "dog")
	if !errors.Is(err, entities.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if len(f.generator.calls) != 0 {
		t.Error("generator called while store unavailable")
	}
}

func TestGeneration_Img2Img(t *testing.T) {
	ctx := context.Background()
	f := newGenerationFixture(t, 1)
	_ = f.sessions.SetRatio(ctx, 1, entities.ModeImg2Img, "4:3")

	if err := f.service.Generate(ctx, 1, 100, "make it blue"); err != nil {
		t.Fatalf("Generate without images failed: %v", err)
	}
	if len(f.generator.calls) != 0 || f.messenger.texts[0] != msgNeedImage {
		t.Fatalf("expected a request for images, got %v", f.messenger.texts)
	}

	_, _ = f.sessions.AddImage(ctx, 1, "https://tg/a.jpg")
	if err := f.service.Generate(ctx, 1, 100, "make it blue"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	req := f.generator.calls[0]
	if req.Mode != entities.ModeImg2Img || req.AspectRatio != "4:3" || len(req.ImageURLs) != 1 {
		t.Errorf("unexpected request %+v", req)
	}
	if session, _ := f.sessions.Get(ctx, 1); session != nil {
		t.Errorf("session not reset after img2img: %+v", session)
	}
}

func TestGeneration_EmptyPromptIgnored(t *testing.T) {
	f := newGenerationFixture(t, 1)
	if err := f.service.Generate(context.Background(), 1, 100, "   "); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(f.messenger.texts) != 0 {
		t.Errorf("replied to empty prompt: %v", f.messenger.texts)
	}
}
