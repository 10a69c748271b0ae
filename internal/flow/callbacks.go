package flow

import "strings"

// Callback token prefixes. Every inline button carries "<prefix>:<arg>";
// the dispatcher decodes the prefix against a fixed table built at startup
// and hands the remainder to the owning handler as its argument.
const (
	// Shared across flows.
	CBCancel = "cnl"
	CBSkip   = "skp"

	// Itinerary flow.
	CBItinEdit = "ied"
	CBItinSave = "ifm"

	// Event flow.
	CBEventItinerary  = "eit"
	CBEventManual     = "emn"
	CBEventImport     = "eim"
	CBEventEdit       = "eed"
	CBEventSave       = "efm"
	CBEventImportDone = "edn"

	// Contact flow.
	CBContactItinerary = "cit"
	CBContactEvent     = "cev"
	CBContactSkipEvent = "cse"
	CBContactTagToggle = "ctg"
	CBContactTagsDone  = "ctd"
	CBContactEdit      = "ced"
	CBContactSave      = "cfm"

	// Forward-to-contact flow.
	CBForwardAddNote   = "fan"
	CBForwardNewEntry  = "fnc"
	CBForwardEventYes  = "fev"
	CBForwardEventPick = "fpk"
	CBForwardEventSel  = "fpe"
	CBForwardNoEvent   = "fne"
)

// EncodeCallback builds a callback token from a prefix and argument.
func EncodeCallback(prefix, arg string) string {
	if arg == "" {
		return prefix + ":"
	}
	return prefix + ":" + arg
}

// DecodeCallback splits a callback token into prefix and argument.
func DecodeCallback(data string) (prefix, arg string) {
	if i := strings.IndexByte(data, ':'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}
