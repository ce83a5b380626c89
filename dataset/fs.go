package dataset

import (
	"context"
	"io/fs"
)

// FS returns a Fetcher that reads documents from fsys, typically an
// os.DirFS over a built dataset directory. Missing files surface as
// errors wrapping fs.ErrNotExist.
func FS(fsys fs.FS) Fetcher {
	return FetcherFunc(func(ctx context.Context, name string) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fs.ReadFile(fsys, name)
	})
}
