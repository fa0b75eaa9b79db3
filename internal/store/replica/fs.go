package replica

import (
	"io/fs"

	"github.com/cockroachdb/errors"
)

func fsSub() (fs.FS, error) {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "migrations fs")
	}
	return sub, nil
}
