package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/app/history"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage/storagemock"
)

func TestServiceList(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		sessionID  string
		setupMocks func(m *storagemock.MockHistoryRepository)
		expEntries []history.Entry
		expErr     error
	}{
		"Messages should be rendered newest first with only the final answer.": {
			sessionID: "proj-1",
			setupMocks: func(m *storagemock.MockHistoryRepository) {
				m.On("ListMessages", mock.Anything, "proj-1").Once().Return([]model.Message{
					{ID: "1", SessionID: "proj-1", Sender: "a@b.c", Role: model.MessageRoleUser, Content: "who wins?", VideoID: "v1", CreatedAt: t0},
					{ID: "2", SessionID: "proj-1", Role: model.MessageRoleAssistant, Content: "Thought: count goals\nFinal Answer: Team A", VideoID: "v1", CreatedAt: t0.Add(time.Second)},
				}, nil)
			},
			expEntries: []history.Entry{
				{ID: "2", Sender: "system", Message: "Team A", VideoID: "v1", CreatedAt: t0.Add(time.Second)},
				{ID: "1", Sender: "a@b.c", Message: "who wins?", VideoID: "v1", CreatedAt: t0},
			},
		},
		"Empty agent answers should be skipped.": {
			sessionID: "proj-1",
			setupMocks: func(m *storagemock.MockHistoryRepository) {
				m.On("ListMessages", mock.Anything, "proj-1").Once().Return([]model.Message{
					{ID: "1", Role: model.MessageRoleAssistant, Content: "Final Answer:  "},
				}, nil)
			},
			expEntries: []history.Entry{},
		},
		"Answers without marker should be kept untouched.": {
			sessionID: "proj-1",
			setupMocks: func(m *storagemock.MockHistoryRepository) {
				m.On("ListMessages", mock.Anything, "proj-1").Once().Return([]model.Message{
					{ID: "1", Role: model.MessageRoleAssistant, Content: "I don't know"},
				}, nil)
			},
			expEntries: []history.Entry{{ID: "1", Sender: "system", Message: "I don't know"}},
		},
		"A repository error should fail.": {
			sessionID: "proj-1",
			setupMocks: func(m *storagemock.MockHistoryRepository) {
				m.On("ListMessages", mock.Anything, "proj-1").Once().Return(nil, errors.New("db gone"))
			},
			expErr: errors.New("could not list messages: db gone"),
		},
		"A missing session should fail.": {
			setupMocks: func(m *storagemock.MockHistoryRepository) {},
			expErr:     model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := &storagemock.MockHistoryRepository{}
			test.setupMocks(repo)

			svc, err := history.NewService(history.ServiceConfig{Repository: repo})
			require.NoError(err)

			entries, err := svc.List(context.Background(), test.sessionID)
			if test.expErr != nil {
				require.Error(err)
				if errors.Is(test.expErr, model.ErrNotValid) {
					assert.ErrorIs(err, model.ErrNotValid)
				} else {
					assert.Equal(test.expErr.Error(), err.Error())
				}
				return
			}
			require.NoError(err)
			assert.Equal(test.expEntries, entries)
			repo.AssertExpectations(t)
		})
	}
}
