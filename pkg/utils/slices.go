package utils

// FilterNonNil is a lo.Filter predicate dropping nil errors.
func FilterNonNil(err error, _ int) bool {
	return err != nil
}
