package ranking

import "errors"

// ErrUnknownBand is returned by ParseBand for values other than high, mid, low or all.
var ErrUnknownBand = errors.New("unknown band")
