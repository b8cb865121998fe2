package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDatabases(t *testing.T) map[string]Database {
	t.Helper()
	ldb, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(ldb.Close)
	return map[string]Database{
		"memdb":   NewMemDB(),
		"leveldb": ldb,
	}
}

func TestPutGet(t *testing.T) {
	for name, db := range newTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("alpha"), []byte("one")))

			value, err := db.Get([]byte("alpha"))
			require.NoError(t, err)
			require.Equal(t, []byte("one"), value)

			_, err = db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestIterateRespectsPrefixAndOrder(t *testing.T) {
	for name, db := range newTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("loan/b"), []byte("2")))
			require.NoError(t, db.Put([]byte("loan/a"), []byte("1")))
			require.NoError(t, db.Put([]byte("lender/x"), []byte("9")))

			var keys []string
			err := db.Iterate([]byte("loan/"), func(key, value []byte) error {
				keys = append(keys, string(key))
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, []string{"loan/a", "loan/b"}, keys)
		})
	}
}

func TestWriteBatchIsAtomicDelete(t *testing.T) {
	for name, db := range newTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			err := db.WriteBatch(map[string][]byte{
				"fresh": []byte("y"),
				"stale": nil,
			})
			require.NoError(t, err)

			value, err := db.Get([]byte("fresh"))
			require.NoError(t, err)
			require.Equal(t, []byte("y"), value)

			_, err = db.Get([]byte("stale"))
			require.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("abc")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	value[0] = 'z'

	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), again)
}
