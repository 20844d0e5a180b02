package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schls/model"
)

func TestOpenSQLite(t *testing.T) {
	gdb, err := Open(filepath.Join(t.TempDir(), "sub", "history.db"))
	require.NoError(t, err)
	defer Close(gdb)

	assert.True(t, gdb.Migrator().HasTable(&model.DownloadRecord{}))
}

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor("mysql://user:pw@tcp(127.0.0.1:3306)/schls")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = dialectorFor("mysql://not a dsn")
	assert.Error(t, err)

	_, err = dialectorFor("")
	assert.Error(t, err)
}
