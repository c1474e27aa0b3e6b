package market

import "errors"

// ErrNoHistoryData is returned when the provider answers without samples.
var ErrNoHistoryData = errors.New("no history data")

// errEmptyResponse marks an upstream reply with no rows. It is treated as a
// failure so empty results are never cached.
var errEmptyResponse = errors.New("empty upstream response")

// ChartErrorMessage is shown by chart widgets rendered from the minimal state.
const ChartErrorMessage = "Unable to load trading data. Please try again later."
