package workflow_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"ytcourier/internal/config"
	"ytcourier/internal/executor"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/media"
	"ytcourier/internal/notifications"
	"ytcourier/internal/services"
	"ytcourier/internal/transport"
	"ytcourier/internal/uploader"
	"ytcourier/internal/workflow"
	"ytcourier/internal/workspace"
)

const (
	testOwner int64 = 1001
	testChat  int64 = 2002
	testURL         = "https://youtu.be/dQw4w9WgXcQ"
)

// recordingMessenger captures every outbound interaction so tests can
// assert on the conversation.
type recordingMessenger struct {
	mu         sync.Mutex
	nextID     int
	texts      []string
	edits      []string
	selections [][]transport.SelectionOption
	cleared    []int
	videoPaths []string
	audios     []transport.Audio
}

func (r *recordingMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.texts = append(r.texts, text)
	return r.nextID, nil
}

func (r *recordingMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, text)
	return nil
}

func (r *recordingMessenger) SendSelection(ctx context.Context, chatID int64, text string, options []transport.SelectionOption) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.selections = append(r.selections, options)
	return r.nextID, nil
}

func (r *recordingMessenger) ClearSelection(ctx context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, messageID)
	return nil
}

func (r *recordingMessenger) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videoPaths = append(r.videoPaths, path)
	return nil
}

func (r *recordingMessenger) SendAudio(ctx context.Context, chatID int64, audio transport.Audio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audios = append(r.audios, audio)
	return nil
}

func (r *recordingMessenger) lastText(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		t.Fatal("no texts sent")
	}
	return r.texts[len(r.texts)-1]
}

func (r *recordingMessenger) lastEdit(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.edits) == 0 {
		t.Fatal("no edits made")
	}
	return r.edits[len(r.edits)-1]
}

func (r *recordingMessenger) options(t *testing.T) []transport.SelectionOption {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.selections) == 0 {
		t.Fatal("no selection keyboard sent")
	}
	return r.selections[0]
}

// stubExtractor answers Resolve with a fixed format list and serves
// synthetic streams of configured sizes.
type stubExtractor struct {
	mu         sync.Mutex
	sizes      map[string]int64
	downloads  []string
	resolveErr error

	blockOnce sync.Once
	block     chan struct{} // non-nil makes downloads wait
	started   chan struct{} // closed when the first download begins
}

func (s *stubExtractor) Resolve(ctx context.Context, rawURL string) (*media.Video, []media.Format, error) {
	if s.resolveErr != nil {
		return nil, nil, s.resolveErr
	}
	video := &media.Video{
		ID:       "dQw4w9WgXcQ",
		Title:    "Sample",
		Author:   "Some Channel",
		Duration: 200 * time.Second,
	}
	formats := []media.Format{
		{ID: "137", MimeType: "video/mp4", QualityLabel: "1080p", Height: 1080, FPS: 30, Bitrate: 4_000_000, SizeBytes: 400_000_000, HasVideo: true},
		{ID: "18", MimeType: "video/mp4", QualityLabel: "360p", Height: 360, FPS: 30, Bitrate: 700_000, SizeBytes: 70_000_000, HasVideo: true, HasAudio: true, AudioChannels: 2},
		{ID: "140", MimeType: "audio/mp4", Bitrate: 128_000, SizeBytes: 3_200_000, HasAudio: true, AudioChannels: 2},
	}
	return video, formats, nil
}

func (s *stubExtractor) Download(ctx context.Context, rawURL, formatID, dest string, onBytes func(int)) error {
	s.mu.Lock()
	s.downloads = append(s.downloads, formatID)
	size := s.sizes[formatID]
	s.mu.Unlock()

	if s.started != nil {
		s.blockOnce.Do(func() { close(s.started) })
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return services.Wrap(services.ErrCancelled, "stub", "download", "interrupted", ctx.Err())
		}
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for written := int64(0); written < size; {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "stub", "download", "interrupted", err)
		}
		n := int64(chunk)
		if size-written < n {
			n = size - written
		}
		if _, err := file.Write(buf[:n]); err != nil {
			return err
		}
		written += n
		if onBytes != nil {
			onBytes(int(n))
		}
	}
	return nil
}

func (s *stubExtractor) downloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.downloads)
}

type stubRunner struct{}

func (stubRunner) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, append(video, audio...), 0o644)
}

func (stubRunner) TranscodeMP3(ctx context.Context, inPath, outPath string, duration time.Duration, onPercent func(float64)) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	if onPercent != nil {
		onPercent(100)
	}
	return os.WriteFile(outPath, data, 0o644)
}

type stubThumbs struct{}

func (stubThumbs) Fetch(ctx context.Context, videoID, dest string) (string, error) {
	return "hqdefault", os.WriteFile(dest, make([]byte, 4096), 0o644)
}

type testEnv struct {
	cfg       *config.Config
	store     *jobstore.Store
	messenger *recordingMessenger
	extractor *stubExtractor
	manager   *workflow.Manager
}

func newEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.WorkspaceRoot = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Store.DSN = ":memory:"
	cfg.Notifications.NtfyTopic = ""
	cfg.Downloads.ProgressUpdateInterval = 1
	cfg.Downloads.ProgressPercentDelta = 1
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := jobstore.Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	messenger := &recordingMessenger{}
	extractor := &stubExtractor{sizes: map[string]int64{
		"18":  300_000,
		"137": 500_000,
		"140": 100_000,
	}}

	exec := executor.New(extractor, stubRunner{}, stubThumbs{}, cfg.Downloads.MaxFileSizeBytes, nil)
	up := uploader.New(messenger, cfg.Downloads.MaxFileSizeBytes, nil)
	up.SetRetryDelay(time.Millisecond)
	spaces := workspace.NewManager(cfg.Paths.WorkspaceRoot, nil)
	notifier := notifications.NewService(&cfg)

	manager := workflow.NewManager(&cfg, store, extractor, exec, up, messenger, spaces, notifier, nil)
	t.Cleanup(manager.Close)

	return &testEnv{
		cfg:       &cfg,
		store:     store,
		messenger: messenger,
		extractor: extractor,
		manager:   manager,
	}
}

// offerCatalog admits a URL and waits for the selection keyboard.
func (env *testEnv) offerCatalog(t *testing.T) []transport.SelectionOption {
	t.Helper()
	env.manager.HandleURL(context.Background(), testOwner, testChat, testURL)
	env.manager.Wait()
	return env.messenger.options(t)
}

func (env *testEnv) findOption(t *testing.T, formatID string) transport.SelectionOption {
	t.Helper()
	for _, opt := range env.messenger.options(t) {
		if opt.FormatID == formatID {
			return opt
		}
	}
	t.Fatalf("no option for format %q", formatID)
	return transport.SelectionOption{}
}

func (env *testEnv) jobStatus(t *testing.T, jobID string) jobstore.Status {
	t.Helper()
	job, err := env.store.GetByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job.Status
}

func (env *testEnv) assertWorkspaceEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(env.cfg.Paths.WorkspaceRoot)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace root not empty: %d entries left", len(entries))
	}
}

func TestVideoJobEndToEnd(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)
	opt := env.findOption(t, "18")

	ack := env.manager.HandleSelection(context.Background(), testOwner, transport.Selection{JobID: opt.JobID, FormatID: "18"})
	if ack != "Queued: 360p" {
		t.Fatalf("ack = %q", ack)
	}
	env.manager.Wait()

	if got := env.jobStatus(t, opt.JobID); got != jobstore.StatusCompleted {
		t.Fatalf("status = %s, want %s", got, jobstore.StatusCompleted)
	}
	if len(env.messenger.videoPaths) != 1 {
		t.Fatalf("videos sent = %d, want 1", len(env.messenger.videoPaths))
	}
	if got := env.messenger.lastEdit(t); !strings.HasPrefix(got, "Done: ") {
		t.Fatalf("final edit = %q, want Done prefix", got)
	}
	env.assertWorkspaceEmpty(t)
}

func TestMuxedSelectionDownloadsBothStreams(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)
	opt := env.findOption(t, "137")

	ack := env.manager.HandleSelection(context.Background(), testOwner, transport.Selection{JobID: opt.JobID, FormatID: "137"})
	if ack != "Queued: 1080p" {
		t.Fatalf("ack = %q", ack)
	}
	env.manager.Wait()

	if got := env.jobStatus(t, opt.JobID); got != jobstore.StatusCompleted {
		t.Fatalf("status = %s", got)
	}
	if got := env.extractor.downloadCount(); got != 2 {
		t.Fatalf("downloads = %d, want 2", got)
	}
	env.assertWorkspaceEmpty(t)
}

func TestMP3SelectionDeliversTaggedAudio(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)
	opt := env.findOption(t, "mp3")
	if !opt.Estimated {
		t.Fatal("mp3 option should carry an estimated size")
	}

	ack := env.manager.HandleSelection(context.Background(), testOwner, transport.Selection{JobID: opt.JobID, FormatID: "mp3"})
	if ack != "Queued: MP3" {
		t.Fatalf("ack = %q", ack)
	}
	env.manager.Wait()

	if got := env.jobStatus(t, opt.JobID); got != jobstore.StatusCompleted {
		t.Fatalf("status = %s", got)
	}
	if len(env.messenger.audios) != 1 {
		t.Fatalf("audios sent = %d, want 1", len(env.messenger.audios))
	}
	audio := env.messenger.audios[0]
	if audio.Title != "Sample" || audio.Performer != "Some Channel" {
		t.Fatalf("audio metadata = %q by %q", audio.Title, audio.Performer)
	}
	if audio.DurationSecs != 200 {
		t.Fatalf("duration = %d, want 200", audio.DurationSecs)
	}
	env.assertWorkspaceEmpty(t)
}

func TestSecondURLWhileActiveIsRejected(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)

	env.manager.HandleURL(context.Background(), testOwner, testChat, testURL)
	env.manager.Wait()

	if got := env.messenger.lastText(t); !strings.Contains(got, "already have a job in progress") {
		t.Fatalf("text = %q", got)
	}
	jobs, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
}

func TestInvalidURLCreatesNoJob(t *testing.T) {
	env := newEnv(t, nil)
	env.manager.HandleURL(context.Background(), testOwner, testChat, "ftp://example.com/clip")
	env.manager.Wait()

	if got := env.messenger.lastText(t); !strings.Contains(got, "does not look like a supported video URL") {
		t.Fatalf("text = %q", got)
	}
	jobs, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs = %d, want 0", len(jobs))
	}
}

func TestResolveFailureEndsJob(t *testing.T) {
	env := newEnv(t, nil)
	env.extractor.resolveErr = services.Wrap(services.ErrUnreachable, "stub", "resolve", "upstream down", nil)

	env.manager.HandleURL(context.Background(), testOwner, testChat, testURL)
	env.manager.Wait()

	jobs, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != jobstore.StatusFailed {
		t.Fatalf("jobs = %+v", jobs)
	}
	if got := env.messenger.lastText(t); !strings.Contains(got, "Could not reach the video service") {
		t.Fatalf("text = %q", got)
	}
}

func TestSecondTapOnSameKeyboardIsStale(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)
	opt := env.findOption(t, "18")
	sel := transport.Selection{JobID: opt.JobID, FormatID: "18"}

	if ack := env.manager.HandleSelection(context.Background(), testOwner, sel); ack != "Queued: 360p" {
		t.Fatalf("first ack = %q", ack)
	}
	env.manager.Wait()

	if ack := env.manager.HandleSelection(context.Background(), testOwner, sel); ack != "Already handled." {
		t.Fatalf("second ack = %q", ack)
	}
}

func TestSelectionFromWrongOwnerIsIgnored(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)
	opt := env.findOption(t, "18")

	ack := env.manager.HandleSelection(context.Background(), testOwner+1, transport.Selection{JobID: opt.JobID, FormatID: "18"})
	if ack != "" {
		t.Fatalf("ack = %q, want silence", ack)
	}
	if got := env.jobStatus(t, opt.JobID); got != jobstore.StatusAwaitingSelection {
		t.Fatalf("status = %s", got)
	}
}

func TestOversizeSelectionFailsBeforeDownload(t *testing.T) {
	env := newEnv(t, func(cfg *config.Config) {
		cfg.Downloads.MaxFileSizeBytes = 1000
	})
	env.offerCatalog(t)
	opt := env.findOption(t, "18")

	env.manager.HandleSelection(context.Background(), testOwner, transport.Selection{JobID: opt.JobID, FormatID: "18"})
	env.manager.Wait()

	if got := env.jobStatus(t, opt.JobID); got != jobstore.StatusFailed {
		t.Fatalf("status = %s, want %s", got, jobstore.StatusFailed)
	}
	if got := env.extractor.downloadCount(); got != 0 {
		t.Fatalf("downloads = %d, want 0", got)
	}
	if got := env.messenger.lastEdit(t); !strings.Contains(got, "exceeds the size limit") {
		t.Fatalf("final edit = %q", got)
	}
	env.assertWorkspaceEmpty(t)
}

func TestCancelWhileAwaitingSelection(t *testing.T) {
	env := newEnv(t, nil)
	opts := env.offerCatalog(t)

	env.manager.HandleCancel(context.Background(), testOwner, testChat)
	env.manager.Wait()

	if got := env.jobStatus(t, opts[0].JobID); got != jobstore.StatusCancelled {
		t.Fatalf("status = %s, want %s", got, jobstore.StatusCancelled)
	}
	if got := env.messenger.lastText(t); got != "Cancelled." {
		t.Fatalf("text = %q", got)
	}
	if len(env.messenger.cleared) == 0 {
		t.Fatal("keyboard not cleared")
	}
}

func TestCancelMidDownload(t *testing.T) {
	env := newEnv(t, nil)
	env.extractor.block = make(chan struct{})
	env.extractor.started = make(chan struct{})
	env.offerCatalog(t)
	opt := env.findOption(t, "18")

	env.manager.HandleSelection(context.Background(), testOwner, transport.Selection{JobID: opt.JobID, FormatID: "18"})
	<-env.extractor.started

	env.manager.HandleCancel(context.Background(), testOwner, testChat)
	env.manager.Wait()

	if got := env.jobStatus(t, opt.JobID); got != jobstore.StatusCancelled {
		t.Fatalf("status = %s, want %s", got, jobstore.StatusCancelled)
	}
	if got := env.messenger.lastEdit(t); got != "Cancelled." {
		t.Fatalf("final edit = %q", got)
	}
	env.assertWorkspaceEmpty(t)
}

func TestCancelWithNothingActive(t *testing.T) {
	env := newEnv(t, nil)
	env.manager.HandleCancel(context.Background(), testOwner, testChat)
	if got := env.messenger.lastText(t); got != "Nothing to cancel." {
		t.Fatalf("text = %q", got)
	}
}

func TestOwnerFreedAfterCompletion(t *testing.T) {
	env := newEnv(t, nil)
	env.offerCatalog(t)
	opt := env.findOption(t, "18")
	env.manager.HandleSelection(context.Background(), testOwner, transport.Selection{JobID: opt.JobID, FormatID: "18"})
	env.manager.Wait()

	env.manager.HandleURL(context.Background(), testOwner, testChat, testURL)
	env.manager.Wait()

	if len(env.messenger.selections) != 2 {
		t.Fatalf("selection keyboards = %d, want 2", len(env.messenger.selections))
	}
}
