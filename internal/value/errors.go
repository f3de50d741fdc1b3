package value

import "github.com/crushshell/crush/internal/crusherr"

var errAlreadyConsumed = crusherr.New(crusherr.DataError, "stream value already consumed")

// ErrUnordered is returned by Compare when the two values have no defined
// ordering.
var ErrUnordered = crusherr.New(crusherr.TypeError, "values are not ordered")
