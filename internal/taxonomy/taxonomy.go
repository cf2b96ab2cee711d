// Package taxonomy holds the static knowledge base for event triage:
// which event identifiers belong to which forensic category, the canonical
// description for each identifier, and the process names associated with
// cloud-storage and email clients. The tables are loaded once and treated
// as immutable for the lifetime of a run.
package taxonomy

// Category is one of the forensic categories an event can belong to.
type Category int

const (
	None Category = iota
	FileAccess
	USB
	Network
	RemoteAccess
	PrivilegeEscalation
	AntiForensics
	PowerShell
	EmailTrust
)

// Categories lists every real category in report order.
var Categories = []Category{
	FileAccess, USB, Network, RemoteAccess,
	PrivilegeEscalation, AntiForensics, PowerShell, EmailTrust,
}

// String returns the report section title for the category.
func (c Category) String() string {
	switch c {
	case FileAccess:
		return "File Access / Deletion / Network Shares"
	case USB:
		return "USB / Removable Media Activity"
	case Network:
		return "Network Activity (Firewall)"
	case RemoteAccess:
		return "Remote Access / Logon / RDP"
	case PrivilegeEscalation:
		return "Privilege Escalation / Account Changes"
	case AntiForensics:
		return "Anti-Forensics / Log Tampering"
	case PowerShell:
		return "PowerShell / Scripted Activity"
	case EmailTrust:
		return "Email Trust / Certificate Issues"
	default:
		return "Uncategorized"
	}
}

// IDSet is a set of event identifiers.
type IDSet map[int]struct{}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

func newIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Taxonomy maps event identifiers to categories and descriptions.
// Construct it once with Default and pass it by reference; it is read-only
// after construction.
type Taxonomy struct {
	FileAccessIDs    IDSet
	USBIDs           IDSet
	DeviceInfoIDs    IDSet
	NetworkIDs       IDSet
	RemoteAccessIDs  IDSet
	PrivEscIDs       IDSet
	AntiForensicsIDs IDSet
	PowerShellIDs    IDSet
	EmailTrustIDs    IDSet

	// CloudProcessNames and EmailClientProcessNames are scanned against
	// process-creation and script-block descriptions as exfiltration
	// indicators.
	CloudProcessNames       []string
	EmailClientProcessNames []string

	interesting  IDSet
	descriptions map[int]string
}

// Default returns the built-in taxonomy. The identifier sets and
// descriptions cover the standard Windows Security, System, PowerShell
// and driver-framework channels.
func Default() *Taxonomy {
	t := &Taxonomy{
		FileAccessIDs:    newIDSet(4663, 4656, 4658, 4660, 4670, 5140, 5142, 5144, 5145),
		USBIDs:           newIDSet(20001, 2100, 2102, 2003, 400, 410, 1006, 1010, 3003, 3100, 3102, 6416, 6421, 6422, 6424),
		DeviceInfoIDs:    newIDSet(1006, 1010, 20001, 2100, 2102, 2003, 6416, 6421, 6422, 6424, 400, 410),
		NetworkIDs:       newIDSet(5156, 5158, 5152, 5154),
		RemoteAccessIDs:  newIDSet(624, 4624, 4625, 4634, 4647, 4776, 4648, 4800, 4801, 4778, 4779, 1149),
		PrivEscIDs:       newIDSet(4672, 4697, 4720, 4732, 4728, 4616, 4726),
		AntiForensicsIDs: newIDSet(1102, 104),
		PowerShellIDs:    newIDSet(4104, 4103),
		EmailTrustIDs:    newIDSet(4107, 4110),

		CloudProcessNames: []string{
			"OneDrive.exe", "Dropbox.exe", "GoogleDriveFS.exe", "Box.exe",
			"rclone.exe", "winscp.exe", "filezilla.exe",
		},
		EmailClientProcessNames: []string{"OUTLOOK.EXE", "thunderbird.exe"},

		descriptions: descriptions,
	}

	t.interesting = make(IDSet)
	for _, set := range []IDSet{
		t.FileAccessIDs, t.USBIDs, t.DeviceInfoIDs, t.NetworkIDs,
		t.RemoteAccessIDs, t.PrivEscIDs, t.AntiForensicsIDs,
		t.PowerShellIDs, t.EmailTrustIDs,
	} {
		for id := range set {
			t.interesting[id] = struct{}{}
		}
	}
	t.interesting[4688] = struct{}{}

	return t
}

// Interesting reports whether an identifier is worth the cost of a
// description lookup: it belongs to some category set, the device-info
// set, or is the process-creation identifier.
func (t *Taxonomy) Interesting(id int) bool {
	return t.interesting.Contains(id)
}

// Describe returns the canonical description for an event identifier, or
// "Unknown/other" when the identifier has no entry.
func (t *Taxonomy) Describe(id int) string {
	if d, ok := t.descriptions[id]; ok {
		return d
	}
	return "Unknown/other"
}

var descriptions = map[int]string{
	4663: "File/folder access attempt",
	4656: "Handle to object requested",
	4658: "Handle to object closed",
	4660: "Object deleted",
	4670: "Permissions on object changed",
	5140: "Access to a network share",
	5142: "Network share added",
	5144: "Network share deleted",
	5145: "Network share checked for access",

	20001: "USB device connected (DriverFrameworks-UserMode)",
	2100:  "USB device removed",
	2102:  "USB device removal requested",
	2003:  "USB device configured/removed",
	400:   "Device install (Kernel-PnP)",
	410:   "Device install (Kernel-PnP)",
	1006:  "Storage/volume interaction",
	1010:  "Storage/volume interaction",
	3003:  "Device configured",
	3100:  "Device started",
	3102:  "Device removed",
	6416:  "New external device recognized",
	6421:  "PNP: Device enable requested",
	6422:  "PNP: Device disable requested",
	6424:  "PNP: Device property change",

	5156: "Allowed outbound network connection",
	5158: "TCP connection bind",
	5152: "Blocked connection",
	5154: "Allowed connection",

	624:  "Legacy logon/account event",
	4624: "Successful logon",
	4625: "Failed logon",
	4634: "Logoff",
	4647: "User-initiated logoff",
	4776: "Credential validation",
	4648: "Logon using explicit credentials",
	4800: "Workstation locked",
	4801: "Workstation unlocked",
	4778: "RDP session reconnected",
	4779: "RDP session disconnected",
	1149: "Successful RDP authentication",

	4672: "Special privileges assigned to new logon",
	4697: "Service installed",
	4720: "User account created",
	4732: "User added to local group",
	4728: "User added to privileged/AD group",
	4616: "System time changed",
	4726: "User account deleted",

	1102: "Security audit log cleared",
	104:  "System event log cleared",

	4104: "PowerShell script block logged",
	4103: "PowerShell command logged",

	4107: "Certificate / trust error (Outlook/WinTrust)",
	4110: "Certificate / trust chain issue",
}
