package queue

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/access-gate/internal/model"
)

type recordingSink struct {
    got []model.IssuanceRecord
    err error
}

func (s *recordingSink) InsertIssued(_ context.Context, rec model.IssuanceRecord) error {
    if s.err != nil {
        return s.err
    }
    s.got = append(s.got, rec)
    return nil
}

func TestHandleMessageWritesRecord(t *testing.T) {
    sink := &recordingSink{}
    body := []byte(`{"code":"BS-AAAAA-BBBBB","session_id":"cs_1","email":"a@example.com","source":"webhook","created_at":"2026-05-04T08:30:00Z"}`)

    require.NoError(t, handleMessage(context.Background(), sink, body))
    require.Len(t, sink.got, 1)
    assert.Equal(t, "BS-AAAAA-BBBBB", sink.got[0].Code)
    assert.Equal(t, "webhook", sink.got[0].Source)
    assert.Equal(t, time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC), sink.got[0].IssuedAt)
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
    sink := &recordingSink{}
    assert.Error(t, handleMessage(context.Background(), sink, []byte(`not json`)))
    assert.Error(t, handleMessage(context.Background(), sink, []byte(`{"code":""}`)))
    assert.Empty(t, sink.got)
}

func TestHandleMessageSurfacesSinkError(t *testing.T) {
    sink := &recordingSink{err: errors.New("db down")}
    err := handleMessage(context.Background(), sink, []byte(`{"code":"C","session_id":"S"}`))
    assert.Error(t, err)
}
