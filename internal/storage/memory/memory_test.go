package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
	"github.com/grakai/pitchside/internal/storage/memory"
)

var (
	_ storage.StatusRepository  = &memory.Repository{}
	_ storage.StatusSwapper     = &memory.Repository{}
	_ storage.JobRepository     = &memory.Repository{}
	_ storage.ClipRepository    = &memory.Repository{}
	_ storage.HistoryRepository = &memory.Repository{}
)

func newRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
	require.NoError(t, err)
	return repo
}

func TestStatus(t *testing.T) {
	tests := map[string]struct {
		setup     func(r *memory.Repository)
		old, new  model.SessionStatus
		expSwap   bool
		expStatus model.SessionStatus
	}{
		"A missing session should be idle and swappable to processing.": {
			setup:     func(r *memory.Repository) {},
			old:       model.SessionStatusIdle,
			new:       model.SessionStatusProcessing,
			expSwap:   true,
			expStatus: model.SessionStatusProcessing,
		},
		"A processing session should not be swapped from idle.": {
			setup: func(r *memory.Repository) {
				_ = r.SetStatus(context.Background(), "p1", model.SessionStatusProcessing)
			},
			old:       model.SessionStatusIdle,
			new:       model.SessionStatusProcessing,
			expSwap:   false,
			expStatus: model.SessionStatusProcessing,
		},
		"A processing session should be swapped back to idle.": {
			setup: func(r *memory.Repository) {
				_ = r.SetStatus(context.Background(), "p1", model.SessionStatusProcessing)
			},
			old:       model.SessionStatusProcessing,
			new:       model.SessionStatusIdle,
			expSwap:   true,
			expStatus: model.SessionStatusIdle,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := newRepo(t)
			test.setup(repo)

			swapped, err := repo.SwapStatus(context.Background(), "p1", test.old, test.new)
			require.NoError(err)
			assert.Equal(test.expSwap, swapped)

			status, err := repo.GetStatus(context.Background(), "p1")
			require.NoError(err)
			assert.Equal(test.expStatus, status)
		})
	}
}

func TestJobs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newRepo(t)

	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	j1 := model.Job{ID: "j1", SessionID: "p1", Status: model.JobStatusRunning, CreatedAt: t0}
	j2 := model.Job{ID: "j2", SessionID: "p1", Status: model.JobStatusRunning, CreatedAt: t0.Add(time.Minute)}
	j3 := model.Job{ID: "j3", SessionID: "p2", Status: model.JobStatusRunning, CreatedAt: t0}

	for _, j := range []model.Job{j1, j2, j3} {
		require.NoError(repo.CreateJob(ctx, j))
	}
	assert.ErrorIs(repo.CreateJob(ctx, j1), model.ErrAlreadyExists)

	j1.Status = model.JobStatusCompleted
	require.NoError(repo.UpdateJob(ctx, j1))
	assert.ErrorIs(repo.UpdateJob(ctx, model.Job{ID: "missing"}), model.ErrNotFound)

	got, err := repo.GetJob(ctx, "j1")
	require.NoError(err)
	assert.Equal(model.JobStatusCompleted, got.Status)

	_, err = repo.GetJob(ctx, "missing")
	assert.ErrorIs(err, model.ErrNotFound)

	jobs, err := repo.ListJobs(ctx, "p1")
	require.NoError(err)
	require.Len(jobs, 2)
	assert.Equal("j2", jobs[0].ID)
	assert.Equal("j1", jobs[1].ID)

	all, err := repo.ListJobs(ctx, "")
	require.NoError(err)
	assert.Len(all, 3)
}

func TestClipsAndMessages(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newRepo(t)

	clip := model.Clip{VideoID: "p1-abc", SessionID: "p1", URL: "http://x/clips/a.mp4", ContentType: "video/mp4"}
	require.NoError(repo.SaveClip(ctx, clip))
	assert.ErrorIs(repo.SaveClip(ctx, clip), model.ErrAlreadyExists)

	require.NoError(repo.AddMessage(ctx, model.Message{ID: "m1", SessionID: "p1", Role: model.MessageRoleUser, Content: "who won?"}))
	require.NoError(repo.AddMessage(ctx, model.Message{ID: "m2", SessionID: "p1", Role: model.MessageRoleAssistant, Content: "Final Answer: A"}))

	msgs, err := repo.ListMessages(ctx, "p1")
	require.NoError(err)
	require.Len(msgs, 2)
	assert.Equal("m1", msgs[0].ID)
	assert.Equal("m2", msgs[1].ID)

	msgs, err = repo.ListMessages(ctx, "p2")
	require.NoError(err)
	assert.Empty(msgs)
}
