package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/clearcut/internal/clock"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/notify"
	"github.com/timmy/clearcut/internal/provider"
	"github.com/timmy/clearcut/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeProvider creates jobs with sequential ids and replays a status script on GetJob.
type fakeProvider struct {
	mu        sync.Mutex
	creates   []provider.CreateRequest
	statuses  []string
	resultURL string
	getCalls  int
	createErr error
	getErr    error
	videos    []provider.Video
	// onCreate runs after a job is created and before CreateJob returns.
	onCreate func(id string)
}

func (f *fakeProvider) CreateJob(ctx context.Context, req provider.CreateRequest) (*provider.Video, error) {
	f.mu.Lock()
	if f.createErr != nil {
		f.mu.Unlock()
		return nil, f.createErr
	}
	f.creates = append(f.creates, req)
	id := fmt.Sprintf("vid-%d", len(f.creates))
	f.mu.Unlock()

	if f.onCreate != nil {
		f.onCreate(id)
	}
	return &provider.Video{
		ID:         id,
		Attributes: provider.VideoAttributes{Status: "queued"},
	}, nil
}

func (f *fakeProvider) GetJob(ctx context.Context, id string) (*provider.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	status := "processing"
	if len(f.statuses) > 0 {
		status = f.statuses[len(f.statuses)-1]
		if f.getCalls <= len(f.statuses) {
			status = f.statuses[f.getCalls-1]
		}
	}
	v := &provider.Video{ID: id, Attributes: provider.VideoAttributes{Status: status}}
	if status == "done" {
		v.Attributes.ResultURL = f.resultURL
	}
	return v, nil
}

func (f *fakeProvider) ListVideos(ctx context.Context) ([]provider.Video, error) {
	return f.videos, nil
}

func (f *fakeProvider) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

type countingMirror struct {
	calls atomic.Int32
	err   error
}

func (m *countingMirror) Mirror(ctx context.Context, rec *domain.JobRecord) (string, error) {
	m.calls.Add(1)
	if m.err != nil {
		return "", m.err
	}
	return "https://mirror.example.com/results/" + rec.ID + ".mp4", nil
}

func newTestRecords(t *testing.T) *repository.JobRecordRepository {
	t.Helper()
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return repository.NewJobRecordRepository(db)
}

type testEnv struct {
	svc     *JobService
	client  *fakeProvider
	records *repository.JobRecordRepository
	router  *notify.Router
	mirror  *countingMirror
	clock   *clock.Fake
}

func newTestEnv(t *testing.T, callbackBase string, client *fakeProvider) *testEnv {
	t.Helper()
	env := &testEnv{
		client:  client,
		records: newTestRecords(t),
		router:  notify.NewRouter(callbackBase),
		mirror:  &countingMirror{},
		clock:   clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
	}
	env.svc = NewJobService(env.client, env.records, env.router, env.mirror, &JobConfig{
		PollInterval: 3 * time.Second,
		WaitTimeout:  time.Minute,
		Clock:        env.clock,
	})
	return env
}

func fileInput() domain.VideoInput {
	return domain.VideoInput{Filename: "clip.mp4", Data: []byte("frames")}
}

func TestSubmitValidation(t *testing.T) {
	testCases := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{name: "no input", req: SubmitRequest{Format: "mp4"}, wantErr: domain.ErrNoInput},
		{name: "blank url", req: SubmitRequest{Format: "mp4", Input: domain.VideoInput{URL: "   "}}, wantErr: domain.ErrNoInput},
		{name: "unknown format", req: SubmitRequest{Format: "webm", Input: fileInput()}, wantErr: domain.ErrInvalidFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, "", &fakeProvider{})
			_, err := env.svc.Submit(context.Background(), tc.req)

			var subErr *domain.SubmissionError
			if !errors.As(err, &subErr) {
				t.Fatalf("expected SubmissionError, got %v", err)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
			if env.client.createCount() != 0 {
				t.Errorf("provider called %d times, want 0", env.client.createCount())
			}
		})
	}
}

func TestSubmitRoutesNotificationMode(t *testing.T) {
	testCases := []struct {
		name         string
		base         string
		wantMode     domain.NotificationMode
		wantCallback string
	}{
		{name: "no host polls", base: "", wantMode: domain.ModePull},
		{name: "host gets callback", base: "https://relay.example.com/", wantMode: domain.ModePush, wantCallback: "https://relay.example.com/api/webhook"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.base, &fakeProvider{})
			job, err := env.svc.Submit(context.Background(), SubmitRequest{Input: fileInput(), Format: "gif"})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if job.Mode != tc.wantMode {
				t.Errorf("mode = %s, want %s", job.Mode, tc.wantMode)
			}
			if got := env.client.creates[0].CallbackURL; got != tc.wantCallback {
				t.Errorf("callback = %q, want %q", got, tc.wantCallback)
			}
			rec, err := env.records.GetByID(context.Background(), job.ID)
			if err != nil {
				t.Fatalf("record missing: %v", err)
			}
			if rec.Mode != tc.wantMode || rec.Status != domain.JobStatusQueued || rec.Format != domain.FormatGIF {
				t.Errorf("record = %+v", rec)
			}
		})
	}
}

func TestModeFixedAfterRouterChange(t *testing.T) {
	env := newTestEnv(t, "https://relay.example.com", &fakeProvider{})
	ctx := context.Background()

	pushed, err := env.svc.Submit(ctx, SubmitRequest{Input: fileInput(), Format: "mp4"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	env.router.SetCallbackBase("")

	pulled, err := env.svc.Submit(ctx, SubmitRequest{Input: fileInput(), Format: "mp4"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if pulled.Mode != domain.ModePull {
		t.Errorf("new job mode = %s, want pull", pulled.Mode)
	}

	// A later pull-shaped snapshot must not rewrite the first job's mode.
	if _, err := env.svc.RecordSnapshot(ctx, domain.StatusSnapshot{ID: pushed.ID, Status: domain.JobStatusProcessing, Mode: domain.ModePull}); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	rec, _ := env.records.GetByID(ctx, pushed.ID)
	if rec.Mode != domain.ModePush {
		t.Errorf("first job mode = %s, want push", rec.Mode)
	}
}

func TestSubmitProviderRejection(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{createErr: &domain.SubmissionError{StatusCode: 413, Err: errors.New("too large")}})
	_, err := env.svc.Submit(context.Background(), SubmitRequest{Input: fileInput(), Format: "mp4"})

	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) || subErr.StatusCode != 413 {
		t.Fatalf("expected provider rejection, got %v", err)
	}
	records, _ := env.records.List(context.Background())
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestSubmitAndWaitPullReturnsResult(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{
		statuses:  []string{"processing", "processing", "done"},
		resultURL: "https://cdn.example.com/vid-1.mp4",
	})

	out, err := env.svc.SubmitAndWait(context.Background(), SubmitRequest{Input: fileInput(), Format: "mp4"}, true)
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	env.svc.Close()

	if out.RedirectURL != "https://cdn.example.com/vid-1.mp4" {
		t.Errorf("redirect = %q", out.RedirectURL)
	}
	if env.client.getCalls != 3 {
		t.Errorf("status queries = %d, want 3", env.client.getCalls)
	}
	for _, w := range env.clock.Waits() {
		if w != 3*time.Second {
			t.Errorf("wait = %s, want 3s", w)
		}
	}

	rec, _ := env.records.GetByID(context.Background(), out.Job.ID)
	if rec.Status != domain.JobStatusDone || rec.ResultURL != out.RedirectURL {
		t.Errorf("record = %+v", rec)
	}
	if rec.MirrorURL == "" {
		t.Error("mirror url not recorded")
	}
	if n := env.mirror.calls.Load(); n != 1 {
		t.Errorf("mirror calls = %d, want 1", n)
	}
}

func TestSubmitAndWaitPushDoesNotPoll(t *testing.T) {
	env := newTestEnv(t, "https://relay.example.com", &fakeProvider{})

	out, err := env.svc.SubmitAndWait(context.Background(), SubmitRequest{Input: fileInput(), Format: "mp4"}, true)
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if out.RedirectURL != "" || out.Job.Mode != domain.ModePush {
		t.Errorf("outcome = %+v", out)
	}
	if env.client.getCalls != 0 {
		t.Errorf("status queries = %d, want 0", env.client.getCalls)
	}
}

func TestSubmitAndWaitTimeoutHandsBackJob(t *testing.T) {
	client := &fakeProvider{statuses: []string{"processing"}}
	env := newTestEnv(t, "", client)
	env.svc.waitTimeout = 50 * time.Millisecond

	out, err := env.svc.SubmitAndWait(context.Background(), SubmitRequest{Input: fileInput(), Format: "gif"}, true)
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if out.RedirectURL != "" {
		t.Errorf("redirect = %q, want empty", out.RedirectURL)
	}
	if out.Job.Status.IsTerminal() {
		t.Errorf("status = %s, want non-terminal", out.Job.Status)
	}
}

func TestSubmitAndWaitFailedJob(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{statuses: []string{"processing", "failed"}})

	_, err := env.svc.SubmitAndWait(context.Background(), SubmitRequest{Input: fileInput(), Format: "gif"}, true)
	var failed *domain.ProcessingFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ProcessingFailedError, got %v", err)
	}
	rec, _ := env.records.GetByID(context.Background(), failed.JobID)
	if rec.Status != domain.JobStatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if env.mirror.calls.Load() != 0 {
		t.Error("failed job must not be mirrored")
	}
}

func TestCheckStatusQueryError(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{getErr: errors.New("connection reset")})

	_, err := env.svc.CheckStatus(context.Background(), "vid-9")
	var pollErr *domain.PollError
	if !errors.As(err, &pollErr) || pollErr.JobID != "vid-9" {
		t.Fatalf("expected PollError, got %v", err)
	}
	if env.client.getCalls != 1 {
		t.Errorf("status queries = %d, want 1", env.client.getCalls)
	}
}

func TestCheckStatusRecordsDone(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{statuses: []string{"done"}, resultURL: "https://cdn.example.com/x.gif"})
	ctx := context.Background()

	job, err := env.svc.Submit(ctx, SubmitRequest{Input: fileInput(), Format: "gif"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for i := 0; i < 3; i++ {
		rec, err := env.svc.CheckStatus(ctx, job.ID)
		if err != nil {
			t.Fatalf("CheckStatus: %v", err)
		}
		if rec.Status != domain.JobStatusDone {
			t.Errorf("status = %s, want done", rec.Status)
		}
	}
	env.svc.Close()
	if n := env.mirror.calls.Load(); n != 1 {
		t.Errorf("mirror calls = %d, want 1", n)
	}
}

func TestCheckStatusDoneWithoutResult(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{statuses: []string{"done"}})
	ctx := context.Background()

	job, err := env.svc.Submit(ctx, SubmitRequest{Input: fileInput(), Format: "mp4"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rec, err := env.svc.CheckStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	env.svc.Close()

	if rec.Status != domain.JobStatusProcessing || rec.ResultURL != "" {
		t.Errorf("record = %+v, want processing without result", rec)
	}
	if n := env.mirror.calls.Load(); n != 0 {
		t.Errorf("mirror calls = %d, want 0", n)
	}
}

func TestMirrorFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{statuses: []string{"done"}, resultURL: "https://cdn.example.com/x.mp4"})
	env.mirror.err = errors.New("bucket unreachable")
	ctx := context.Background()

	out, err := env.svc.SubmitAndWait(ctx, SubmitRequest{Input: fileInput(), Format: "mp4"}, true)
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	env.svc.Close()

	rec, _ := env.records.GetByID(ctx, out.Job.ID)
	if rec.Status != domain.JobStatusDone || rec.MirrorURL != "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestListProviderVideos(t *testing.T) {
	env := newTestEnv(t, "", &fakeProvider{videos: []provider.Video{{ID: "a"}, {ID: "b"}}})
	videos, err := env.svc.ListProviderVideos(context.Background())
	if err != nil {
		t.Fatalf("ListProviderVideos: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("videos = %d, want 2", len(videos))
	}
}
