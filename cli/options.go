package cli

import (
	"reflect"
	"strings"

	"github.com/alecthomas/kong"

	"go.hackfix.me/ledger/ledger"
)

// OpKindMapper parses an operation kind, e.g. add_column. Dashes are accepted
// in place of underscores.
type OpKindMapper struct{}

var _ kong.Mapper = (*OpKindMapper)(nil)

// Decode implements the kong.Mapper interface.
func (OpKindMapper) Decode(kctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := kctx.Scan.PopValueInto("kind", &value)
	if err != nil {
		return err
	}

	kind, err := ledger.OpKindFromString(strings.ReplaceAll(value, "-", "_"))
	if err != nil {
		return err
	}

	target.Set(reflect.ValueOf(kind))

	return nil
}

