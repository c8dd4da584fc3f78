// Package hydrate turns loosely typed documents (decoded YAML or JSON) into
// typed structs, with hooks around the decode step.
package hydrate

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Source identifies the document being decoded in errors and hooks.
type Source struct {
	Path    string
	Section string
}

func (s Source) String() string {
	if s.Section == "" {
		return s.Path
	}
	return s.Path + "#" + s.Section
}

// PreHook may rewrite the payload before decoding. Returning nil keeps the
// current payload.
type PreHook func(Source, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Source, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts payloads into T through a JSON round trip.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	strict    bool
}

// WithPreHook runs hook before decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook runs hook after decoding.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields rejects keys T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. payload itself is never modified.
func (d *Decoder[T]) Decode(src Source, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, errors.Errorf("hydrate: payload is nil for %s", src)
	}

	current, err := clonePayload(payload)
	if err != nil {
		return zero, errors.Wrapf(err, "hydrate: clone payload for %s", src)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(src, current)
		if err != nil {
			return zero, errors.Wrapf(err, "hydrate: pre-hook for %s failed", src)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, errors.Wrapf(err, "hydrate: marshal payload for %s", src)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, errors.Wrapf(err, "hydrate: decode %s", src)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(src, &result); err != nil {
			return zero, errors.Wrapf(err, "hydrate: post-hook for %s failed", src)
		}
	}

	return result, nil
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
