package reconstruct

// PartialSuffixForTest exposes partialSuffix for external tests.
func PartialSuffixForTest(s, token string) int {
	return partialSuffix(s, token)
}

// RepairJSONForTest exposes repairJSON for external tests.
func RepairJSONForTest(s string) string {
	return repairJSON(s)
}
