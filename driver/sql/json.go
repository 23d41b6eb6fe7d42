package sql

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/pkg/errors"

	"github.com/streamvault/streamvault/metadata"
)

// DecodeJSONValue parses a payload column into its open Go value using
// easyjson's lexer, which walks the document once without reflection.
// Load pages decode two JSON columns per row, so this is the hottest
// parse in the module.
func DecodeJSONValue(data []byte) (interface{}, error) {
	l := jlexer.Lexer{Data: data}
	v := l.Interface()
	if err := l.Error(); err != nil {
		return nil, errors.Wrap(err, "decode json column")
	}
	return v, nil
}

// DecodeMetadata parses a metadata column into a metadata.Metadata. A
// JSON null decodes to an empty mapping; any other non-object document
// is an error, since metadata is persisted as an object by every
// persistence strategy.
func DecodeMetadata(data []byte) (metadata.Metadata, error) {
	v, err := DecodeJSONValue(data)
	if err != nil {
		return nil, err
	}

	switch m := v.(type) {
	case nil:
		return metadata.Metadata{}, nil
	case map[string]interface{}:
		return metadata.Metadata(m), nil
	default:
		return nil, errors.Errorf("metadata column holds %T, not a JSON object", v)
	}
}
