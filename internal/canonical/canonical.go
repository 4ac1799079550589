// Package canonical produces the exact byte string both client and store
// sign for each operation. The grammar is fixed: changing a single byte here
// breaks signature verification against deployed stores.
package canonical

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Kind names a store operation.
type Kind string

const (
	KindStore              Kind = "store"
	KindRetrieve           Kind = "retrieve"
	KindDelete             Kind = "delete"
	KindDeleteAll          Kind = "delete_all"
	KindDeleteBefore       Kind = "delete_before"
	KindExpireMessages     Kind = "expire_msgs"
	KindExpireAll          Kind = "expire_all"
	KindGetExpiries        Kind = "get_expiries"
	KindRevokeSubaccount   Kind = "revoke_subaccount"
	KindUnrevokeSubaccount Kind = "unrevoke_subaccount"
)

var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrMissingRequiredField = errors.New("missing required field")
)

// Params carries every field any operation can sign over. Zero values mean
// "not provided"; Build decides per operation which ones are required.
//
// Namespace handling is deliberately asymmetric with the JSON request body:
// the body always carries the namespace explicitly, but the signed message
// omits it entirely when it is zero, unspecified, or "all". Rendering "0"
// here is the classic way to produce signatures the store rejects.
type Params struct {
	Namespace     int
	AllNamespaces bool
	Timestamp     int64 // ms since epoch
	Expiry        int64 // ms since epoch
	Shorten       bool
	Extend        bool
	MessageHashes []string
	TokenHex      string
	TokenHexes    []string
}

// Build returns the canonical signing bytes for kind. Pure: identical inputs
// always produce byte-identical output.
func Build(kind Kind, p Params) ([]byte, error) {
	var b bytes.Buffer
	switch kind {
	case KindStore:
		if p.Timestamp == 0 {
			return nil, missing(kind, "timestamp")
		}
		b.WriteString("store")
		writeNamespace(&b, p)
		writeInt(&b, p.Timestamp)

	case KindRetrieve:
		if p.Timestamp == 0 {
			return nil, missing(kind, "timestamp")
		}
		b.WriteString("retrieve")
		writeNamespace(&b, p)
		writeInt(&b, p.Timestamp)

	case KindDelete:
		if len(p.MessageHashes) == 0 {
			return nil, missing(kind, "messages")
		}
		b.WriteString("delete")
		writeAll(&b, p.MessageHashes)

	case KindDeleteAll:
		if p.Timestamp == 0 {
			return nil, missing(kind, "timestamp")
		}
		b.WriteString("delete_all")
		writeNamespace(&b, p)
		writeInt(&b, p.Timestamp)

	case KindDeleteBefore:
		if p.Timestamp == 0 {
			return nil, missing(kind, "before")
		}
		b.WriteString("delete_before")
		writeNamespace(&b, p)
		writeInt(&b, p.Timestamp)

	case KindExpireMessages:
		if p.Expiry == 0 {
			return nil, missing(kind, "expiry")
		}
		if len(p.MessageHashes) == 0 {
			return nil, missing(kind, "messages")
		}
		b.WriteString("expire")
		// Shorten wins when both flags are set; absent both, the literal
		// is empty.
		if p.Shorten {
			b.WriteString("shorten")
		} else if p.Extend {
			b.WriteString("extend")
		}
		writeInt(&b, p.Expiry)
		writeAll(&b, p.MessageHashes)

	case KindExpireAll:
		if p.Expiry == 0 {
			return nil, missing(kind, "expiry")
		}
		b.WriteString("expire_all")
		writeNamespace(&b, p)
		writeInt(&b, p.Expiry)

	case KindGetExpiries:
		if p.Timestamp == 0 {
			return nil, missing(kind, "timestamp")
		}
		if len(p.MessageHashes) == 0 {
			return nil, missing(kind, "messages")
		}
		b.WriteString("get_expiries")
		writeInt(&b, p.Timestamp)
		writeAll(&b, p.MessageHashes)

	case KindRevokeSubaccount:
		if p.TokenHex == "" {
			return nil, missing(kind, "token")
		}
		b.WriteString("revoke_subaccount")
		b.WriteString(p.TokenHex)

	case KindUnrevokeSubaccount:
		if p.Timestamp == 0 {
			return nil, missing(kind, "timestamp")
		}
		if len(p.TokenHexes) == 0 {
			return nil, missing(kind, "tokens")
		}
		b.WriteString("unrevoke_subaccount")
		writeInt(&b, p.Timestamp)
		writeAll(&b, p.TokenHexes)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperation, string(kind))
	}
	return b.Bytes(), nil
}

// writeNamespace renders the namespace as ASCII decimal, or nothing at all
// when it is zero or covers all namespaces.
func writeNamespace(b *bytes.Buffer, p Params) {
	if p.AllNamespaces || p.Namespace == 0 {
		return
	}
	b.WriteString(strconv.Itoa(p.Namespace))
}

func writeInt(b *bytes.Buffer, v int64) {
	b.WriteString(strconv.FormatInt(v, 10))
}

// writeAll joins values with no delimiter, preserving caller order. Order is
// part of what gets signed; sorting here would change the message.
func writeAll(b *bytes.Buffer, values []string) {
	for _, v := range values {
		b.WriteString(v)
	}
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrMissingRequiredField, string(kind), field)
}
