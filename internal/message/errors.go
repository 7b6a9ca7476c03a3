package message

import "fmt"

// NotifyError is the typed error every codec decode path returns on a
// malformed message. It carries the exact (code, subcode, data) RFC 4271
// §6 mandates; the per-peer read path (internal/fsm) converts it
// directly into an outbound NOTIFICATION and tears the session down to
// IDLE. It never represents anything recoverable — receiving one always
// ends the session.
type NotifyError struct {
	Code    byte
	Subcode byte
	Data    []byte
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("NOTIFICATION %d/%d: %s", e.Code, e.Subcode, NotificationName(e.Code, e.Subcode))
}

func notify(code, subcode byte, data ...byte) *NotifyError {
	return &NotifyError{Code: code, Subcode: subcode, Data: data}
}

// Error codes (RFC 4271 §4.5, plus RFC 4486/7313/RFC 4724 extensions).
const (
	NotifyMessageHeader      = 1
	NotifyOpen               = 2
	NotifyUpdate             = 3
	NotifyHoldTimerExpired   = 4
	NotifyFSM                = 5
	NotifyCease              = 6
)

// Subcodes, grouped by the error code they belong to.
const (
	SubHeaderConnectionNotSynchronized = 1
	SubHeaderBadMessageLength          = 2
	SubHeaderBadMessageType            = 3

	SubOpenUnsupportedVersion  = 1
	SubOpenBadPeerAS           = 2
	SubOpenBadBGPIdentifier    = 3
	SubOpenUnsupportedOptional = 4
	SubOpenUnacceptableHold    = 6
	SubOpenUnsupportedCapability = 7

	SubUpdateMalformedAttributeList      = 1
	SubUpdateUnrecognizedWellKnown       = 2
	SubUpdateMissingWellKnown            = 3
	SubUpdateAttributeFlags              = 4
	SubUpdateAttributeLength             = 5
	SubUpdateInvalidOrigin                = 6
	SubUpdateInvalidNextHop              = 8
	SubUpdateOptionalAttribute           = 9
	SubUpdateInvalidNetworkField         = 10
	SubUpdateMalformedASPath             = 11

	SubCeaseConnectionCollisionResolution = 7
	SubCeaseAdministrativeShutdown        = 2
	SubCeaseOtherConfigurationChange      = 3
	SubCeaseMaxPrefixesReached            = 1
)

var notificationNames = map[[2]byte]string{
	{NotifyMessageHeader, SubHeaderConnectionNotSynchronized}: "connection not synchronized",
	{NotifyMessageHeader, SubHeaderBadMessageLength}:          "bad message length",
	{NotifyMessageHeader, SubHeaderBadMessageType}:            "bad message type",
	{NotifyOpen, SubOpenUnsupportedVersion}:                   "unsupported version number",
	{NotifyOpen, SubOpenBadPeerAS}:                            "bad peer AS",
	{NotifyOpen, SubOpenBadBGPIdentifier}:                     "bad BGP identifier",
	{NotifyOpen, SubOpenUnsupportedOptional}:                  "unsupported optional parameter",
	{NotifyOpen, SubOpenUnacceptableHold}:                     "unacceptable hold time",
	{NotifyUpdate, SubUpdateMalformedAttributeList}:           "malformed attribute list",
	{NotifyUpdate, SubUpdateUnrecognizedWellKnown}:            "unrecognized well-known attribute",
	{NotifyUpdate, SubUpdateMissingWellKnown}:                 "missing well-known attribute",
	{NotifyUpdate, SubUpdateAttributeFlags}:                   "attribute flags error",
	{NotifyUpdate, SubUpdateAttributeLength}:                  "attribute length error",
	{NotifyUpdate, SubUpdateInvalidOrigin}:                    "invalid ORIGIN attribute",
	{NotifyUpdate, SubUpdateInvalidNextHop}:                   "invalid NEXT_HOP attribute",
	{NotifyUpdate, SubUpdateOptionalAttribute}:                "optional attribute error",
	{NotifyUpdate, SubUpdateInvalidNetworkField}:              "invalid network field",
	{NotifyUpdate, SubUpdateMalformedASPath}:                  "malformed AS_PATH",
	{NotifyHoldTimerExpired, 0}:                               "hold timer expired",
	{NotifyFSM, 0}:                                             "finite state machine error",
	{NotifyCease, SubCeaseMaxPrefixesReached}:                 "maximum number of prefixes reached",
	{NotifyCease, SubCeaseAdministrativeShutdown}:             "administrative shutdown",
	{NotifyCease, SubCeaseOtherConfigurationChange}:           "other configuration change",
	{NotifyCease, SubCeaseConnectionCollisionResolution}:      "connection collision resolution",
}

// NotificationName returns a human-readable name for a (code, subcode)
// pair, for logging. Unknown pairs return a generic label rather than
// an empty string so log lines always carry something useful.
func NotificationName(code, subcode byte) string {
	if name, ok := notificationNames[[2]byte{code, subcode}]; ok {
		return name
	}
	return fmt.Sprintf("code %d subcode %d", code, subcode)
}
