package advance

import "errors"

// ErrAlreadyResolved reports an acknowledge or override attempt on a
// notice that has already been resolved.
var ErrAlreadyResolved = errors.New("advancement notice already resolved")
