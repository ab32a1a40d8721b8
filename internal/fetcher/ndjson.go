package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONStream decodes a stream of JSON values, sending each to a
// channel. It accepts both NDJSON (one value per line) and concatenated JSON
// with no separators, which covers every shape the FOPH export has shipped
// in. Both channels are closed when processing completes.
func DecodeJSONStream[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ndjson: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				if err == io.EOF {
					return
				}
				errCh <- eris.Wrap(err, "ndjson: decode value")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ndjson: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
