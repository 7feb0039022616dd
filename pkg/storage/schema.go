package storage

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/knowgraph/pkg/codec"
)

const metaSchemaVersionKey = "schema_version"

// checkAndStampSchemaVersion reads meta[schema_version]; on a fresh
// database it stamps the current codec.SchemaVersion, on an existing one
// it refuses to open if the stored version is newer than this binary
// understands (spec.md §3 invariant 9).
func checkAndStampSchemaVersion(db *badger.DB) error {
	return db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(metaSchemaVersionKey))
		if err == badger.ErrKeyNotFound {
			return txn.Set(metaKey(metaSchemaVersionKey), []byte(strconv.Itoa(codec.SchemaVersion)))
		}
		if err != nil {
			return err
		}
		var stored int
		if err := item.Value(func(val []byte) error {
			v, perr := strconv.Atoi(string(val))
			if perr != nil {
				return perr
			}
			stored = v
			return nil
		}); err != nil {
			return err
		}
		if stored > codec.SchemaVersion {
			return fmt.Errorf("%w: database schema_version %d, binary supports %d", ErrSchemaTooNew, stored, codec.SchemaVersion)
		}
		if stored < codec.SchemaVersion {
			return fmt.Errorf("%w: database schema_version %d, binary requires %d", ErrSchemaTooOld, stored, codec.SchemaVersion)
		}
		return nil
	})
}
