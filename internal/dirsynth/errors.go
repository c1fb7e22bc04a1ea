package dirsynth

import "errors"

// errNotListable is returned when virtualPath does not name a directory.
var errNotListable = errors.New("dirsynth: path is not a directory")
