// Package classify decides which forensic category, if any, a record
// belongs to. Classification is a pure function of the event identifier
// and the provider name; the same identifier can be reused by unrelated
// logging subsystems, so every category membership is qualified by a
// provider rule.
package classify

import (
	"strings"

	"github.com/seshat-forensics/evtxtriage/internal/taxonomy"
)

// Provider names that carry an exact-match rule.
const (
	securityAuditingProvider = "Microsoft-Windows-Security-Auditing"
	eventlogProvider         = "Microsoft-Windows-Eventlog"
)

// Event identifiers with special handling.
const (
	rdpAuthID          = 1149
	auditLogClearedID  = 1102
	systemLogClearedID = 104
	processCreationID  = 4688
	scriptBlockID      = 4104
)

// usbProviderMarkers qualify an identifier as USB/device related. The raw
// identifier sets reuse numbers from unrelated channels, so only the
// subsystem-qualified occurrence counts.
var usbProviderMarkers = []string{
	"Kernel-PnP", "DriverFrameworks-UserMode", "UserPnp", "StorPort",
	"USB", "Volume", "Partition", "Disk",
}

var emailTrustMarkers = []string{"CAPI", "Certificate", "Crypto", "WinTrust"}

// Decision is the classification outcome for a single record.
type Decision struct {
	// Category is the forensic category the record counts toward, or
	// taxonomy.None.
	Category taxonomy.Category

	// Focused is set when the record belongs to any category: it then
	// contributes a timeline entry and a forensic-interest tally.
	Focused bool

	// RawUSB marks the record as eligible for device correlation.
	RawUSB bool

	// DeviceInfo marks the record as eligible for the per-identifier
	// device example list. The identifier set is broader than RawUSB, the
	// provider rule is the same.
	DeviceInfo bool

	// ProcessScan marks process-creation and script-block records whose
	// descriptions are scanned for exfiltration indicators.
	ProcessScan bool
}

// Classify evaluates one record against the taxonomy.
func Classify(tax *taxonomy.Taxonomy, eventID int, provider string) Decision {
	d := Decision{Category: taxonomy.None}

	isUSBProvider := containsAny(provider, usbProviderMarkers)
	isAudit := strings.EqualFold(provider, securityAuditingProvider)

	d.RawUSB = tax.USBIDs.Contains(eventID) && isUSBProvider
	d.DeviceInfo = tax.DeviceInfoIDs.Contains(eventID) && isUSBProvider
	d.ProcessScan = eventID == processCreationID || eventID == scriptBlockID

	switch {
	case tax.FileAccessIDs.Contains(eventID) && isAudit:
		d.Category = taxonomy.FileAccess
	case d.RawUSB:
		d.Category = taxonomy.USB
	case tax.NetworkIDs.Contains(eventID) && isAudit:
		d.Category = taxonomy.Network
	case tax.RemoteAccessIDs.Contains(eventID) && isRemoteAccess(eventID, provider, isAudit):
		d.Category = taxonomy.RemoteAccess
	case tax.PrivEscIDs.Contains(eventID) && isAudit:
		d.Category = taxonomy.PrivilegeEscalation
	case isAntiForensics(eventID, provider, isAudit):
		d.Category = taxonomy.AntiForensics
	case tax.PowerShellIDs.Contains(eventID) && containsFold(provider, "PowerShell"):
		d.Category = taxonomy.PowerShell
	case tax.EmailTrustIDs.Contains(eventID) && containsAny(provider, emailTrustMarkers):
		d.Category = taxonomy.EmailTrust
	}

	d.Focused = d.Category != taxonomy.None
	return d
}

// isRemoteAccess applies the per-identifier provider rule for the
// logon/RDP set: the RDP-authentication identifier is logged by the
// terminal services channels, everything else by the security audit.
func isRemoteAccess(eventID int, provider string, isAudit bool) bool {
	if eventID == rdpAuthID {
		return containsFold(provider, "TerminalServices") ||
			containsFold(provider, "RemoteConnectionManager")
	}
	return isAudit
}

func isAntiForensics(eventID int, provider string, isAudit bool) bool {
	switch eventID {
	case auditLogClearedID:
		return isAudit
	case systemLogClearedID:
		return strings.EqualFold(provider, eventlogProvider)
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
