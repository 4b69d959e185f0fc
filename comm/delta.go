package comm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"encoding/base64"

	"github.com/go-replica/replmap/crdt"
)

// Structs

// Delta represents one synchronization payload between two
// replmap replicas. It consists of the frontier of the
// originating replica at export time and the ordered set of
// operations the receiving replica was missing.
type Delta struct {
	Sender         string
	SenderFrontier crdt.VClock
	Operations     []crdt.Operation
}

// DecodeError is returned by Parse when supplied bytes do not
// form a well-formed marshalled delta.
type DecodeError struct {
	Reason string
}

// Value kind tags used on the wire. Keys and string values are
// base64-encoded so that payloads cannot collide with the
// delimiters of the format.
const (
	tagInt    = "i"
	tagFloat  = "f"
	tagString = "s"
	tagBool   = "b"
)

// Functions

// Error implements the error interface for DecodeError.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed delta: %s", e.Reason)
}

// InitDelta returns a fresh Delta variable.
func InitDelta() *Delta {

	return &Delta{
		SenderFrontier: crdt.InitVClock(),
	}
}

// Marshal turns d into its byte representation, ready to be
// handed to whatever channel connects two replicas:
//
//	sender|origin:seq;origin:seq|origin,seq,key,tag,value;...
//
// Frontier entries are sorted by origin so that marshalling
// equal deltas yields byte-identical output. Replica
// identifiers must not contain the delimiter symbols of the
// format ('|', ';', ':', ',').
func (d *Delta) Marshal() []byte {

	// Merge together all frontier entries in
	// deterministic origin order.
	origins := make([]string, 0, len(d.SenderFrontier))
	for origin := range d.SenderFrontier {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	frontierValues := make([]string, 0, len(origins))
	for _, origin := range origins {
		frontierValues = append(frontierValues, fmt.Sprintf("%s:%d", origin, d.SenderFrontier[origin]))
	}

	// Merge together all operations in the order they
	// were handed in, which the exporter derived from
	// its log and therefore reproduces deterministically.
	opValues := make([]string, 0, len(d.Operations))
	for _, op := range d.Operations {

		tag, payload := encodeValue(op.Value)

		opValues = append(opValues, fmt.Sprintf("%s,%d,%s,%s,%s",
			op.Origin,
			op.Seq,
			base64.StdEncoding.EncodeToString([]byte(op.Key)),
			tag,
			payload,
		))
	}

	marshalled := fmt.Sprintf("%s|%s|%s",
		d.Sender,
		strings.Join(frontierValues, ";"),
		strings.Join(opValues, ";"),
	)

	return []byte(marshalled)
}

// Parse takes in supplied bytes representing a received delta
// and parses them back into struct form. Malformed input is
// rejected with a *DecodeError.
func Parse(raw []byte) (*Delta, error) {

	// Initialize new delta struct.
	d := InitDelta()

	// Remove attached newline symbol.
	msg := strings.TrimRight(string(raw), "\n")

	// Split message at pipe symbols.
	parts := strings.Split(msg, "|")

	// Deltas with other than three parts are discarded.
	if len(parts) != 3 {
		return nil, &DecodeError{Reason: "expected three pipe-separated segments"}
	}

	// Check sender part of delta.
	if len(parts[0]) < 1 {
		return nil, &DecodeError{Reason: "sender replica identifier is missing"}
	}
	d.Sender = parts[0]

	// Parse frontier segment, if present.
	if parts[1] != "" {

		for _, pair := range strings.Split(parts[1], ";") {

			// Split at colon.
			entry := strings.Split(pair, ":")

			// Frontier entries with other than two parts are discarded.
			if len(entry) != 2 {
				return nil, &DecodeError{Reason: fmt.Sprintf("invalid frontier entry '%s'", pair)}
			}

			// Parse number from string.
			seq, err := strconv.ParseUint(entry[1], 10, 32)
			if err != nil {
				return nil, &DecodeError{Reason: fmt.Sprintf("invalid sequence number in frontier entry '%s'", pair)}
			}

			d.SenderFrontier[entry[0]] = uint32(seq)
		}
	}

	// Parse operations segment, if present.
	if parts[2] != "" {

		for _, rawOp := range strings.Split(parts[2], ";") {

			// Split operation at commas.
			fields := strings.Split(rawOp, ",")

			// Operations with other than five fields are discarded.
			if len(fields) != 5 {
				return nil, &DecodeError{Reason: fmt.Sprintf("invalid operation '%s'", rawOp)}
			}

			if len(fields[0]) < 1 {
				return nil, &DecodeError{Reason: "operation origin replica identifier is missing"}
			}

			seq, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, &DecodeError{Reason: fmt.Sprintf("invalid sequence number in operation '%s'", rawOp)}
			}

			// Decode key part of operation encoded in base64.
			key, err := base64.StdEncoding.DecodeString(fields[2])
			if err != nil {
				return nil, &DecodeError{Reason: fmt.Sprintf("decoding base64 key of operation '%s' failed", rawOp)}
			}

			value, err := decodeValue(fields[3], fields[4])
			if err != nil {
				return nil, err
			}

			d.Operations = append(d.Operations, crdt.Operation{
				Origin: fields[0],
				Seq:    uint32(seq),
				Key:    string(key),
				Value:  value,
			})
		}
	}

	return d, nil
}

// encodeValue turns a tagged scalar value into its wire kind
// tag and payload representation.
func encodeValue(v crdt.Value) (string, string) {

	switch v.Kind {
	case crdt.KindInt:
		return tagInt, strconv.FormatInt(v.Int, 10)
	case crdt.KindFloat:
		return tagFloat, strconv.FormatFloat(v.Float, 'g', -1, 64)
	case crdt.KindString:
		return tagString, base64.StdEncoding.EncodeToString([]byte(v.Str))
	default:
		return tagBool, strconv.FormatBool(v.Bool)
	}
}

// decodeValue parses a wire kind tag and payload back into a
// tagged scalar value.
func decodeValue(tag string, payload string) (crdt.Value, error) {

	switch tag {

	case tagInt:
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return crdt.Value{}, &DecodeError{Reason: fmt.Sprintf("invalid integer payload '%s'", payload)}
		}
		return crdt.IntValue(i), nil

	case tagFloat:
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return crdt.Value{}, &DecodeError{Reason: fmt.Sprintf("invalid float payload '%s'", payload)}
		}
		return crdt.FloatValue(f), nil

	case tagString:
		s, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return crdt.Value{}, &DecodeError{Reason: "decoding base64 string payload failed"}
		}
		return crdt.StringValue(string(s)), nil

	case tagBool:
		b, err := strconv.ParseBool(payload)
		if err != nil {
			return crdt.Value{}, &DecodeError{Reason: fmt.Sprintf("invalid boolean payload '%s'", payload)}
		}
		return crdt.BoolValue(b), nil

	default:
		return crdt.Value{}, &DecodeError{Reason: fmt.Sprintf("unsupported value kind tag '%s'", tag)}
	}
}
