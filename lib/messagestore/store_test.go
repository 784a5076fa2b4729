package messagestore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
	"wilma-backend/lib/messagestore/db"
	"wilma-backend/lib/telemetry"
	"wilma-backend/lib/timezone"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:messagestore")
	defer cleanup()

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(sqlite)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		_, err := store.Get(ctx, "alice", "1")
		require.True(t, errors.Is(err, sql.ErrNoRows))

		res, err := store.List(ctx, "alice", "inbox", 0)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 0)
	}
	{
		err := store.Archive(ctx, Record{
			User:       "alice",
			Id:         "4182",
			Folder:     "inbox",
			Subject:    "Kokeen palautus",
			Sender:     "Opettaja Doe",
			Timestamp:  time.Date(2026, 2, 8, 11, 42, 0, 0, timezone.Location),
			Content:    "Muista koe huomenna.",
			Recipients: []string{"Matti Meikäläinen"},
		})
		if err != nil {
			t.Fatal(err)
		}
		err = store.Archive(ctx, Record{
			User:      "alice",
			Id:        "4179",
			Folder:    "inbox",
			Subject:   "Retki",
			Sender:    "Rehtori",
			Timestamp: time.Date(2026, 2, 7, 9, 15, 0, 0, timezone.Location),
		})
		if err != nil {
			t.Fatal(err)
		}
		err = store.Archive(ctx, Record{
			User:      "bob",
			Id:        "4182",
			Folder:    "inbox",
			Subject:   "Someone else's copy",
			Timestamp: timezone.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}

		rec, err := store.Get(ctx, "alice", "4182")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, "Kokeen palautus", rec.Subject)
		require.Equal(t, []string{"Matti Meikäläinen"}, rec.Recipients)
		require.Equal(t, time.Date(2026, 2, 8, 11, 42, 0, 0, timezone.Location), rec.Timestamp)

		res, err := store.List(ctx, "alice", "inbox", 0)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 2)
		// newest first
		require.Equal(t, "4182", res[0].Id)
		require.Equal(t, "4179", res[1].Id)

		res, err = store.List(ctx, "alice", "inbox", 1)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 1)
	}
	{
		// re-archiving replaces the stored copy
		err := store.Archive(ctx, Record{
			User:      "alice",
			Id:        "4182",
			Folder:    "archive",
			Subject:   "Kokeen palautus (muokattu)",
			Timestamp: time.Date(2026, 2, 8, 11, 42, 0, 0, timezone.Location),
		})
		if err != nil {
			t.Fatal(err)
		}

		rec, err := store.Get(ctx, "alice", "4182")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, "Kokeen palautus (muokattu)", rec.Subject)
		require.Equal(t, "archive", rec.Folder)

		res, err := store.List(ctx, "alice", "inbox", 0)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 1)
	}
}
