package validator

import (
	"fmt"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/urn"
)

// CheckUrnShape parses every non-empty identifier in ids against its
// expected namespace, step 2 of the pipeline. A blank string is treated as
// "field omitted" and skipped — required-ness is the schema step's job.
func CheckUrnShape(ids map[string]string, ns urn.Namespace) error {
	for field, raw := range ids {
		if raw == "" {
			continue
		}
		if _, err := urn.ParseInNamespace(raw, ns); err != nil {
			return dsperr.Wrap(dsperr.KindUrnMalformed, err, fmt.Sprintf("field %q is not a valid urn", field))
		}
	}
	return nil
}
