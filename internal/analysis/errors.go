package analysis

import "errors"

// ErrNoDatedRows is returned when the input carries no parseable invoice
// or payment date to anchor the analysis period. It is the only named
// failure of the engine; every other anomaly is absorbed into the report
// as an undefined metric or a diagnostic.
var ErrNoDatedRows = errors.New("no dated rows")
