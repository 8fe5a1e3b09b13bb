package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arjunv/chronoq"
	"github.com/arjunv/chronoq/config"
	"github.com/arjunv/chronoq/store/boltstore"
	"github.com/arjunv/chronoq/store/ramstore"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreRAMBackend(t *testing.T) {
	cfg := config.AppConfig{Store: config.StoreConfig{Backend: "ram"}}

	st, err := openStore(cfg)
	require.NoError(t, err)
	_, ok := st.(*ramstore.Store)
	require.True(t, ok, "ram backend should yield a *ramstore.Store")
}

func TestOpenStoreBoltBackend(t *testing.T) {
	cfg := config.AppConfig{
		Store: config.StoreConfig{Backend: "bolt", BoltPath: filepath.Join(t.TempDir(), "chronoq.db")},
	}

	st, err := openStore(cfg)
	require.NoError(t, err)
	_, ok := st.(*boltstore.Store)
	require.True(t, ok, "bolt backend should yield a *boltstore.Store")
}

func TestOpenStoreUnknownBackendDefaultsToRAM(t *testing.T) {
	cfg := config.AppConfig{Store: config.StoreConfig{Backend: "nonsense"}}

	st, err := openStore(cfg)
	require.NoError(t, err)
	_, ok := st.(*ramstore.Store)
	require.True(t, ok)
}

func TestHeartbeatJobExecuteIsNoopWithoutLogger(t *testing.T) {
	h := heartbeatJob{}
	jobDetail := chronoq.NewJobDetail(chronoq.NewJobKeyWithGroup("heartbeat", "system"), "heartbeat", nil)
	execCtx := chronoq.NewTestJobExecutionContext(context.Background(), jobDetail, nil, time.Now())

	require.NoError(t, h.Execute(execCtx))
}
