package innertube

const (
	engagementPanelsPath = "engagementPanels"
	transcriptParamsPath = "engagementPanelSectionListRenderer.content.continuationItemRenderer." +
		"continuationEndpoint.getTranscriptEndpoint.params"
)

// LocateToken returns the transcript continuation token of the first
// engagement panel that carries one, in the host's panel order.
func LocateToken(initialData []byte) (string, bool) {
	panels, ok := lookup(initialData, engagementPanelsPath)
	if !ok || !panels.IsArray() {
		return "", false
	}

	for _, panel := range panels.Array() {
		if params, found := lookupString(panel, transcriptParamsPath); found {
			return params, true
		}
	}

	return "", false
}
