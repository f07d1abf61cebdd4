package explorer

import "errors"

// ErrNotAFolder is returned when a folder operation targets a file.
var ErrNotAFolder = errors.New("not a folder")
