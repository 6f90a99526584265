package oapi

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Encoder encodes response values to a wire format.
type Encoder interface {
	ContentType() string
	Encode(w io.Writer, v any) error
}

// Decoder decodes request bodies from a wire format.
type Decoder interface {
	ContentType() string
	Decode(r io.Reader, v any) error
}

// jsonCodec implements both Encoder and Decoder for JSON.
type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func (jsonCodec) Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	return trailing(dec.Decode(&extra))
}

// xmlCodec implements both Encoder and Decoder for XML.
type xmlCodec struct{}

func (xmlCodec) ContentType() string { return "application/xml" }

func (xmlCodec) Encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

func (xmlCodec) Decode(r io.Reader, v any) error {
	dec := xml.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return trailing(err)
		}
		switch tok := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(tok)) > 0 {
				return errTrailingData
			}
		case xml.Comment, xml.ProcInst:
		default:
			return errTrailingData
		}
	}
}

var errTrailingData = errors.New("unexpected data after the body value")

// trailing maps the result of reading past the first value: io.EOF means the
// body held exactly one value. An oversized body keeps its own error.
func trailing(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &maxErr):
		return err
	default:
		return errTrailingData
	}
}

// codecRegistry holds all registered encoders and decoders.
// Index 0 is always JSON (the default).
type codecRegistry struct {
	encoders []Encoder
	decoders []Decoder
}

// newCodecRegistry builds a registry with JSON first, XML second, then any
// user-registered encoders and decoders.
func newCodecRegistry(userEncoders []Encoder, userDecoders []Decoder) *codecRegistry {
	cr := &codecRegistry{
		encoders: make([]Encoder, 0, 2+len(userEncoders)),
		decoders: make([]Decoder, 0, 2+len(userDecoders)),
	}
	cr.encoders = append(cr.encoders, jsonCodec{}, xmlCodec{})
	cr.encoders = append(cr.encoders, userEncoders...)
	cr.decoders = append(cr.decoders, jsonCodec{}, xmlCodec{})
	cr.decoders = append(cr.decoders, userDecoders...)
	return cr
}

// negotiate picks an encoder based on the Accept header value.
// Returns (JSON, true) for empty or */* accept values.
// Returns (nil, false) if an explicit Accept has no match.
func (cr *codecRegistry) negotiate(accept string) (Encoder, bool) {
	if accept == "" {
		return cr.encoders[0], true
	}

	type candidate struct {
		encoder Encoder
		quality float64
	}

	var best candidate
	best.quality = -1

	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		q := 1.0
		if qs, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(qs, 64); err == nil {
				q = parsed
			}
		}

		if q <= best.quality {
			continue
		}

		if mediaType == "*/*" {
			best = candidate{encoder: cr.encoders[0], quality: q}
			continue
		}

		for _, enc := range cr.encoders {
			if enc.ContentType() == mediaType {
				best = candidate{encoder: enc, quality: q}
				break
			}
		}
	}

	if best.encoder == nil {
		return nil, false
	}
	return best.encoder, true
}

// decoderFor returns the decoder matching the given Content-Type.
// Returns (JSON decoder, true) for empty content type.
// Returns (nil, false) if the content type is present but unrecognized.
func (cr *codecRegistry) decoderFor(contentType string) (Decoder, bool) {
	if contentType == "" {
		return cr.decoders[0], true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}

	for _, dec := range cr.decoders {
		if dec.ContentType() == mediaType {
			return dec, true
		}
	}
	return nil, false
}

// contentTypes returns all encoder content types (for OpenAPI).
func (cr *codecRegistry) contentTypes() []string {
	cts := make([]string, len(cr.encoders))
	for i, enc := range cr.encoders {
		cts[i] = enc.ContentType()
	}
	return cts
}

// decoderTypes returns all decoder content types (for OpenAPI).
func (cr *codecRegistry) decoderTypes() []string {
	cts := make([]string, len(cr.decoders))
	for i, dec := range cr.decoders {
		cts[i] = dec.ContentType()
	}
	return cts
}

// decodeBody decodes the request body into target with the decoder picked
// by Content-Type. Every failure is a *BindingError: 415 for an unknown
// content type, 413 past the body limit, 400 otherwise.
func (cr *codecRegistry) decodeBody(r *http.Request, target any) error {
	ct := r.Header.Get("Content-Type")
	dec, ok := cr.decoderFor(ct)
	if !ok {
		return &BindingError{
			Field:  "body",
			Reason: "unsupported content type " + strconv.Quote(ct),
			Status: http.StatusUnsupportedMediaType,
			Err:    errors.Mark(errors.Newf("no decoder for %q", ct), ErrBindBody),
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return missingBody()
	}

	err := dec.Decode(r.Body, target)
	if err == nil {
		return nil
	}
	return decodeError(err)
}

func missingBody() *BindingError {
	return &BindingError{
		Field:  "body",
		Reason: "request body is required",
		Err:    errors.Mark(errors.New("empty request body"), ErrBindBody),
	}
}

// decodeError maps a decoder failure to the field and shape it concerns.
func decodeError(err error) *BindingError {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, errTrailingData):
		return &BindingError{
			Field:  "body",
			Reason: "malformed body: " + errTrailingData.Error(),
			Err:    errors.Mark(err, ErrBindBody),
		}
	case errors.Is(err, io.EOF):
		return missingBody()
	case errors.As(err, &maxErr):
		return &BindingError{
			Field:  "body",
			Reason: "request body exceeds " + strconv.FormatInt(maxErr.Limit, 10) + " bytes",
			Status: http.StatusRequestEntityTooLarge,
			Err:    errors.Mark(err, ErrBindBody),
		}
	case errors.As(err, &syntaxErr):
		return &BindingError{
			Field:  "body",
			Reason: "malformed body at offset " + strconv.FormatInt(syntaxErr.Offset, 10),
			Err:    errors.Mark(err, ErrBindBody),
		}
	case errors.As(err, &typeErr):
		field := "body"
		if typeErr.Field != "" {
			field += "." + typeErr.Field
		}
		return &BindingError{
			Field:    field,
			Expected: expectedType(typeErr.Type),
			Reason:   "must be " + expectedType(typeErr.Type) + ", got " + typeErr.Value,
			Err:      errors.Mark(err, ErrBindBody),
		}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &BindingError{
			Field:  "body",
			Reason: "malformed body: unexpected end of input",
			Err:    errors.Mark(err, ErrBindBody),
		}
	default:
		return &BindingError{
			Field:  "body",
			Reason: err.Error(),
			Err:    errors.Mark(err, ErrBindBody),
		}
	}
}
