package client

import (
	"fmt"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/rs/zerolog/log"
)

// CheckResults classifies a parsed response.
//
// A nil list means the parse never produced a result and is reported as a
// *FrameworkError. An empty list is a valid response with no matching
// elements. A list led by a failed status object is an *APIError; a status
// object that cannot report its outcome is a *FrameworkError.
func CheckResults(results []objects.Object) error {
	if results == nil {
		return &FrameworkError{Message: "no result list", Results: results}
	}

	if len(results) == 0 {
		log.Debug().Msg("Response contained no mapped elements")
		return nil
	}

	first := results[0]
	if first.Kind() != objects.KindStatus {
		return nil
	}
	st, ok := first.(objects.Status)
	if !ok {
		return &FrameworkError{
			Message: fmt.Sprintf("status element %s has no outcome", first.Tag()),
			Results: results,
		}
	}
	if st.Failed() {
		return &APIError{Code: st.StatusCode(), Text: st.StatusText()}
	}

	return nil
}

// Only returns the objects of type T, in order.
func Only[T objects.Object](results []objects.Object) []T {
	var out []T
	for _, obj := range results {
		if v, ok := obj.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
