package persist

import (
	"encoding/base64"
	"time"

	"facecapture/internal/capture"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type storeDoc struct {
	Name    string      `yaml:"name"`
	Buffers []bufferDoc `yaml:"buffers"`
}

type bufferDoc struct {
	Name   string     `yaml:"name"`
	Frames []frameDoc `yaml:"frames"`
}

type frameDoc struct {
	TimestampUS int64 `yaml:"timestamp_us"`
	// Payload is base64 so arbitrary bytes survive as a plain scalar.
	Payload string `yaml:"payload"`
}

// Encode serializes a buffer store as a YAML document.
func Encode(store *capture.BufferStore) ([]byte, error) {
	doc := storeDoc{Name: store.Name()}
	for _, b := range store.Buffers() {
		bd := bufferDoc{Name: b.Name(), Frames: make([]frameDoc, 0, b.Len())}
		for f := range b.All() {
			bd.Frames = append(bd.Frames, frameDoc{
				TimestampUS: f.Timestamp.Microseconds(),
				Payload:     base64.StdEncoding.EncodeToString(f.Payload),
			})
		}
		doc.Buffers = append(doc.Buffers, bd)
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, errors.Wrapf(err, "encode store %q", store.Name())
	}
	return data, nil
}

// ErrNameMismatch is returned by Load when a document's name differs from
// the name it was stored under.
var ErrNameMismatch = errors.New("store document name mismatch")

// decodeAs decodes data and checks it describes the store called name.
func decodeAs(name string, data []byte) (*capture.BufferStore, error) {
	store, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if store.Name() != name {
		return nil, errors.Wrapf(ErrNameMismatch, "load %q: document is %q", name, store.Name())
	}
	return store, nil
}

// Decode parses a document produced by Encode. Buffer order is preserved.
func Decode(data []byte) (*capture.BufferStore, error) {
	var doc storeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode store")
	}
	if doc.Name == "" {
		return nil, errors.New("decode store: missing name")
	}

	store := capture.NewBufferStore(doc.Name)
	for _, bd := range doc.Buffers {
		frames := make([]capture.Frame, len(bd.Frames))
		for i, fd := range bd.Frames {
			payload, err := base64.StdEncoding.DecodeString(fd.Payload)
			if err != nil {
				return nil, errors.Wrapf(err, "decode buffer %q frame %d", bd.Name, i)
			}
			frames[i] = capture.Frame{
				Timestamp: time.Duration(fd.TimestampUS) * time.Microsecond,
				Payload:   payload,
			}
		}
		b, err := capture.NewBuffer(bd.Name, frames)
		if err != nil {
			return nil, errors.Wrapf(err, "decode store %q", doc.Name)
		}
		if err := store.Add(b); err != nil {
			return nil, errors.Wrapf(err, "decode store %q", doc.Name)
		}
	}
	return store, nil
}
