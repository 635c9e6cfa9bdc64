package main

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataapi/internal/config"
	"dataapi/internal/dbexec"
)

func TestExecutorFor_SessionClaimsSelectsSessionExecutor(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{}
	assert.IsType(t, &dbexec.StandardExecutor{}, executorFor(cfg, db))

	cfg.Database.SessionClaims = true
	cfg.Database.Database = "library"
	assert.IsType(t, &dbexec.SessionExecutor{}, executorFor(cfg, db))
}

func TestParseClaims(t *testing.T) {
	session, err := parseClaims(`{"sub": "reader-7", "db_role": "app_reader"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sub": "reader-7", "db_role": "app_reader"}, session.Variables())

	session, err = parseClaims("")
	require.NoError(t, err)
	assert.Nil(t, session)

	_, err = parseClaims("not json")
	assert.ErrorContains(t, err, "invalid claims")
}
