package exam

// CheckSubmitOnce rejects identity with DUPLICATE_SUBMISSION when existing
// already holds a Result for it. It is only a predicate: callers must hold
// the results lock across the check and the following append.
func CheckSubmitOnce(identity string, existing []Result) error {
	key := NormalizeIdentity(identity)
	for _, r := range existing {
		if NormalizeIdentity(r.CandidateEmail) == key {
			return reject(CodeDuplicateSubmission, "exam already submitted")
		}
	}
	return nil
}
