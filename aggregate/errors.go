package aggregate

import "errors"

// ErrNotBaseRoot is returned by RecordChange when root does not embed
// *BaseRoot, and so has nowhere to track uncommitted changes and version.
var ErrNotBaseRoot = errors.New("aggregate: root does not embed *BaseRoot")
