package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// ErrNotBundle is returned when a streamed document is not a FHIR Bundle.
var ErrNotBundle = errors.New("not a Bundle")

// BundleEntry is one entry of a streamed Bundle.
type BundleEntry struct {
	// Index is the position of the entry in the bundle
	Index int

	// FullURL is the fullUrl of the entry (if present)
	FullURL string

	ResourceType string
	ID           string

	// Resource is the raw JSON of the entry resource; nil for entries
	// without one.
	Resource json.RawMessage
}

// StreamBundle reads the entries of a Bundle one at a time, so that large
// definition bundles such as profiles-resources.json are never held in
// memory as a whole. The sequence stops after the first error. A document
// whose resourceType is not "Bundle" yields ErrNotBundle.
func StreamBundle(ctx context.Context, r io.Reader) iter.Seq2[BundleEntry, error] {
	return func(yield func(BundleEntry, error) bool) {
		decoder := json.NewDecoder(r)

		if err := expectDelim(decoder, '{'); err != nil {
			yield(BundleEntry{Index: -1}, fmt.Errorf("failed to read bundle: %w", err))
			return
		}

		resourceType := ""
		for decoder.More() {
			if err := ctx.Err(); err != nil {
				yield(BundleEntry{Index: -1}, err)
				return
			}

			token, err := decoder.Token()
			if err != nil {
				yield(BundleEntry{Index: -1}, fmt.Errorf("failed to read field: %w", err))
				return
			}
			field, _ := token.(string)

			switch field {
			case "resourceType":
				if err := decoder.Decode(&resourceType); err != nil {
					yield(BundleEntry{Index: -1}, fmt.Errorf("failed to read resourceType: %w", err))
					return
				}
				if resourceType != "Bundle" {
					yield(BundleEntry{Index: -1}, fmt.Errorf("%w: %s", ErrNotBundle, resourceType))
					return
				}
			case "entry":
				if !streamEntries(ctx, decoder, yield) {
					return
				}
			default:
				var skip json.RawMessage
				if err := decoder.Decode(&skip); err != nil {
					yield(BundleEntry{Index: -1}, fmt.Errorf("failed to skip field %s: %w", field, err))
					return
				}
			}
		}

		if resourceType == "" {
			yield(BundleEntry{Index: -1}, fmt.Errorf("%w: missing resourceType", ErrNotBundle))
		}
	}
}

// streamEntries yields the elements of the entry array. It returns false
// when the sequence must stop.
func streamEntries(ctx context.Context, decoder *json.Decoder, yield func(BundleEntry, error) bool) bool {
	if err := expectDelim(decoder, '['); err != nil {
		yield(BundleEntry{Index: -1}, fmt.Errorf("failed to read entry array: %w", err))
		return false
	}

	for index := 0; decoder.More(); index++ {
		if err := ctx.Err(); err != nil {
			yield(BundleEntry{Index: index}, err)
			return false
		}

		var raw struct {
			FullURL  string          `json:"fullUrl"`
			Resource json.RawMessage `json:"resource"`
		}
		if err := decoder.Decode(&raw); err != nil {
			yield(BundleEntry{Index: index}, fmt.Errorf("failed to decode entry %d: %w", index, err))
			return false
		}

		entry := BundleEntry{Index: index, FullURL: raw.FullURL}
		if len(raw.Resource) > 0 && string(raw.Resource) != "null" {
			var head struct {
				ResourceType string `json:"resourceType"`
				ID           string `json:"id"`
			}
			if err := json.Unmarshal(raw.Resource, &head); err != nil {
				yield(BundleEntry{Index: index}, fmt.Errorf("invalid resource in entry %d: %w", index, err))
				return false
			}
			entry.ResourceType = head.ResourceType
			entry.ID = head.ID
			entry.Resource = raw.Resource
		}

		if !yield(entry, nil) {
			return false
		}
	}

	// closing bracket
	if _, err := decoder.Token(); err != nil {
		yield(BundleEntry{Index: -1}, fmt.Errorf("failed to read entry array end: %w", err))
		return false
	}
	return true
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %v, got %v", want, token)
	}
	return nil
}
